package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "vrpsearch/internal/config"
    "vrpsearch/internal/instances"
    "vrpsearch/internal/model"
    "vrpsearch/internal/opt"
    "vrpsearch/internal/store"
)

const maxBodyBytes = 4 << 20

// SolveHandler handles POST /v1/solve. The search runs in the background
// and 202 carries the run id; with ?wait=true the finished run is returned.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/solve" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if !s.Limiter.Allow() {
        w.Header().Set("Retry-After", "1")
        writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "solve rate limit exceeded", r.URL.Path)
        return
    }
    var req model.SolveRequest
    dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateSolveRequest(&req, s.Cfg.MaxStarts); err != nil {
        writeError(w, r, err)
        return
    }
    p := s.getPrincipal(r)
    job, err := s.prepareRun(r.Context(), p.Subject, req)
    if err != nil {
        writeError(w, r, err)
        return
    }
    if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
        writeJSON(w, http.StatusOK, s.runSync(r.Context(), job))
        return
    }
    s.startRun(job)
    w.Header().Set("Location", "/v1/runs/"+job.run.ID)
    writeJSON(w, http.StatusAccepted, model.SolveAccepted{RunID: job.run.ID, Status: job.run.Status})
}

// RunsIndexHandler handles GET /v1/runs. Non-admin callers only see their
// own runs.
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/runs" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    q := r.URL.Query()
    owner := p.Subject
    if p.IsAdmin() { owner = q.Get("owner") }
    limit := 100
    if v := q.Get("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n <= 0 { writeProblem(w, 400, "Invalid limit", "limit must be a positive integer", r.URL.Path); return }
        limit = n
    }
    items, next, err := s.Store.ListRuns(r.Context(), owner, model.RunStatus(q.Get("status")), q.Get("cursor"), limit)
    if err != nil {
        writeError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, model.RunList{Items: items, NextCursor: next})
}

// RunByIDHandler handles /v1/runs/{id} (GET, DELETE) and its sub-resources:
// /snapshots, /webhooks, /events/stream and /ws.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.SplitN(rest, "/", 2)
    id := parts[0]
    run, err := s.Store.GetRun(r.Context(), id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Run not found", id, r.URL.Path); return }
        writeProblem(w, 500, "Get run failed", err.Error(), r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    if !canSee(p, run.Owner) {
        writeProblem(w, 404, "Run not found", id, r.URL.Path)
        return
    }
    sub := ""
    if len(parts) == 2 { sub = parts[1] }
    switch sub {
    case "":
        switch r.Method {
        case http.MethodGet:
            writeJSON(w, http.StatusOK, run)
        case http.MethodDelete:
            if _, ok := s.requireAdmin(w, r); !ok { return }
            s.cancelRun(w, r, run)
        default:
            w.WriteHeader(http.StatusMethodNotAllowed)
        }
    case "snapshots":
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        snaps, err := s.Store.ListRunSnapshots(r.Context(), id)
        if err != nil { writeProblem(w, 500, "List snapshots failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, map[string]any{"runId": id, "items": snaps})
    case "webhooks":
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        if _, ok := s.requireAdmin(w, r); !ok { return }
        items, err := s.Store.ListWebhookDeliveries(r.Context(), id)
        if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, map[string]any{"runId": id, "items": items})
    case "events/stream":
        s.streamRunEvents(w, r, run)
    case "ws":
        s.RunEventsWSHandler(w, r, run)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    }
}

// cancelRun stops an active search. The run record reaches "cancelled" once
// the search loop notices; finished runs answer 409.
func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request, run model.Run) {
    if run.Status.Terminal() || !s.runs.cancel(run.ID) {
        writeProblem(w, http.StatusConflict, "Run not active", fmt.Sprintf("run is %s", run.Status), r.URL.Path)
        return
    }
    s.Log.WithField("run", run.ID).Info("run cancellation requested")
    writeJSON(w, http.StatusAccepted, model.SolveAccepted{RunID: run.ID, Status: run.Status})
}

// InstancesHandler lists the built-in instance catalog.
func (s *Server) InstancesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/instances" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    writeJSON(w, http.StatusOK, map[string]any{"items": instances.Catalog()})
}

// SolverConfigHandler returns the effective configuration for an algorithm,
// optionally layered over a stored profile.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    q := r.URL.Query()
    var over *config.Patch
    if a := q.Get("algorithm"); a != "" {
        algo := opt.Algorithm(a)
        over = &config.Patch{Algorithm: &algo}
    }
    cfg, err := s.resolveConfig(r.Context(), q.Get("profile"), over)
    if err != nil { writeError(w, r, err); return }
    cfg = cfg.WithDefaults()
    if err := cfg.Validate(); err != nil { writeError(w, r, err); return }
    algos := opt.Algorithms()
    writeJSON(w, http.StatusOK, map[string]any{"config": cfg, "algorithms": algos})
}

// AdminProfilesHandler handles GET /v1/admin/solver/profiles and
// GET|PUT /v1/admin/solver/profiles/{name}.
func (s *Server) AdminProfilesHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/solver/profiles") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if _, ok := s.requireAdmin(w, r); !ok { return }
    name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/solver/profiles"), "/")
    if name == "" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        items, err := s.Store.ListProfiles(r.Context())
        if err != nil { writeProblem(w, 500, "List profiles failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
        return
    }
    switch r.Method {
    case http.MethodGet:
        p, err := s.Store.GetProfile(r.Context(), name)
        if err != nil { writeError(w, r, err); return }
        writeJSON(w, http.StatusOK, p)
    case http.MethodPut:
        var body struct{ Config *opt.Config `json:"config"` }
        dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
        dec.DisallowUnknownFields()
        if err := dec.Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if err := body.Config.WithDefaults().Validate(); err != nil { writeError(w, r, err); return }
        p := model.Profile{Name: name, Config: *body.Config, UpdatedAt: time.Now().UTC()}
        if err := s.Store.SaveProfile(r.Context(), p); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, p)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    if err := s.Store.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
