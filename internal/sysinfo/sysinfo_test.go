package sysinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	a := Collect()
	assert.Equal(t, runtime.GOOS, a.OS)
	assert.Equal(t, runtime.NumCPU(), a.CPUCores)

	b := Collect()
	assert.Equal(t, a.Hostname, b.Hostname)
	assert.Equal(t, a.CPUModel, b.CPUModel)
}
