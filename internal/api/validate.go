package api

import (
    "errors"
    "fmt"
    "net/url"

    "vrpsearch/internal/model"
)

var (
    errBadRequest     = errors.New("bad request")
    errUnknownProfile = errors.New("unknown solver profile")
)

func validateSolveRequest(req *model.SolveRequest, maxStarts int) error {
    if req.Instance == nil && req.InstanceName == "" {
        return fmt.Errorf("%w: instance or instanceName required", errBadRequest)
    }
    if req.Instance != nil && req.InstanceName != "" {
        return fmt.Errorf("%w: instance and instanceName are exclusive", errBadRequest)
    }
    if req.Starts < 0 {
        return fmt.Errorf("%w: starts must be >= 0", errBadRequest)
    }
    if maxStarts > 0 && req.Starts > maxStarts {
        return fmt.Errorf("%w: starts must be <= %d", errBadRequest, maxStarts)
    }
    if req.CallbackURL != "" {
        u, err := url.ParseRequestURI(req.CallbackURL)
        if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
            return fmt.Errorf("%w: callbackUrl must be an absolute http(s) URL", errBadRequest)
        }
    } else if req.CallbackSecret != "" {
        return fmt.Errorf("%w: callbackSecret without callbackUrl", errBadRequest)
    }
    return nil
}
