package api

import (
    "encoding/json"
    "errors"
    "net/http"

    "vrpsearch/internal/instances"
    "vrpsearch/internal/opt"
    "vrpsearch/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
    Type     string `json:"type"`
    Title    string `json:"title"`
    Status   int    `json:"status"`
    Detail   string `json:"detail,omitempty"`
    Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
    w.Header().Set("Content-Type", "application/problem+json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(Problem{
        Type:     "about:blank",
        Title:    title,
        Status:   status,
        Detail:   detail,
        Instance: instance,
    })
}

// errorStatus maps domain errors to an HTTP status and title.
func errorStatus(err error) (int, string) {
    switch {
    case errors.Is(err, errBadRequest),
        errors.Is(err, opt.ErrInvalidConfig),
        errors.Is(err, opt.ErrInvalidInstance),
        errors.Is(err, opt.ErrUnknownOperator),
        errors.Is(err, opt.ErrUnknownCustomer),
        errors.Is(err, instances.ErrInvalidDefinition),
        errors.Is(err, instances.ErrUnsupportedFormat),
        errors.Is(err, store.ErrInvalidCursor):
        return http.StatusBadRequest, "Invalid request"
    case errors.Is(err, instances.ErrUnknownInstance),
        errors.Is(err, errUnknownProfile):
        return http.StatusBadRequest, "Unknown reference"
    case errors.Is(err, opt.ErrInfeasibleInstance):
        return http.StatusUnprocessableEntity, "Infeasible instance"
    case errors.Is(err, store.ErrNotFound):
        return http.StatusNotFound, "Not Found"
    }
    return http.StatusInternalServerError, "Internal error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
    status, title := errorStatus(err)
    writeProblem(w, status, title, err.Error(), r.URL.Path)
}
