package buildinfo

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
    old := Commit
    Commit = "abc123"
    t.Cleanup(func() { Commit = old })

    info := Info()
    assert.Equal(t, Version, info["version"])
    assert.Equal(t, "abc123", info["commit"], "ldflags win over vcs stamps")
    assert.NotEmpty(t, info["module"])
    assert.NotEmpty(t, info["go"])
}
