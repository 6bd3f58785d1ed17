// Package buildinfo reports what binary is running. Version, Commit and
// BuiltAt are set with -ldflags "-X vrpsearch/internal/buildinfo.Version=...".
package buildinfo

import "runtime/debug"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Info returns the link-time values plus the module path and Go version
// embedded by the toolchain. Without ldflags the commit falls back to the
// vcs.revision stamp.
func Info() map[string]string {
    info := map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
        "module":  "vrpsearch",
    }
    bi, ok := debug.ReadBuildInfo()
    if !ok {
        return info
    }
    info["go"] = bi.GoVersion
    if bi.Main.Path != "" {
        info["module"] = bi.Main.Path
    }
    for _, s := range bi.Settings {
        switch s.Key {
        case "vcs.revision":
            if info["commit"] == "" { info["commit"] = s.Value }
        case "vcs.time":
            if info["builtAt"] == "" { info["builtAt"] = s.Value }
        }
    }
    return info
}
