// Package sysinfo describes the host a search runs on.
package sysinfo

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/sirupsen/logrus"

	"vrpsearch/internal/model"
)

var (
	once   sync.Once
	static model.SysInfo
)

// Collect returns host, cpu and memory facts. Host and cpu facts are read
// once per process; memory usage is sampled on every call. Probe failures
// leave the affected fields empty.
func Collect() model.SysInfo {
	once.Do(func() {
		static = model.SysInfo{OS: runtime.GOOS, CPUCores: runtime.NumCPU()}
		if h, err := host.Info(); err == nil {
			static.Hostname = h.Hostname
			static.Platform = h.Platform
		} else {
			logrus.WithError(err).Debug("sysinfo: host probe failed")
		}
		if cs, err := cpu.Info(); err == nil && len(cs) > 0 {
			static.CPUModel = cs[0].ModelName
		} else if err != nil {
			logrus.WithError(err).Debug("sysinfo: cpu probe failed")
		}
	})
	out := static
	if vm, err := mem.VirtualMemory(); err == nil {
		out.MemoryTotal = vm.Total
		out.MemoryUsed = vm.UsedPercent
	} else {
		logrus.WithError(err).Debug("sysinfo: memory probe failed")
	}
	return out
}
