package api

import (
    "net/http"
    "time"

    "vrpsearch/internal/buildinfo"
    "vrpsearch/internal/instances"
    "vrpsearch/internal/opt"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    info := map[string]any{
        "build":      buildinfo.Info(),
        "time":       time.Now().UTC().Format(time.RFC3339),
        "config":     s.Cfg.Keys(),
        "algorithms": opt.Algorithms(),
        "instances":  instances.Names(),
    }
    writeJSON(w, http.StatusOK, info)
}
