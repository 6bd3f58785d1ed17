package api

import (
    "net/http"
    "strings"

    "vrpsearch/internal/auth"
)

const anonymous = "anonymous"

// getPrincipal extracts the caller.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - In dev mode, falls back to X-User / X-Role headers.
// - Otherwise the caller is an anonymous user.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        if pr, err := s.Auth.Verify(tok); err == nil {
            return pr
        }
        return auth.Principal{Subject: anonymous, Role: auth.RoleUser}
    }
    if s.Auth == nil || s.Auth.Mode == "dev" {
        subject := r.Header.Get("X-User")
        role := strings.ToLower(r.Header.Get("X-Role"))
        if subject == "" { subject = anonymous }
        if role == "" { role = auth.RoleUser }
        return auth.Principal{Subject: subject, Role: role}
    }
    return auth.Principal{Subject: anonymous, Role: auth.RoleUser}
}

// requireAdmin writes 403 and reports false unless the caller is an admin.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
        return p, false
    }
    return p, true
}

// canSee reports whether p may read a run owned by owner.
func canSee(p auth.Principal, owner string) bool {
    return p.IsAdmin() || owner == "" || owner == p.Subject
}
