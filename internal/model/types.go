package model

import (
    "time"

    "vrpsearch/internal/config"
    "vrpsearch/internal/instances"
    "vrpsearch/internal/opt"
)

// Core service types shared by the API, the store and the webhook worker.

type RunStatus string

const (
    RunQueued    RunStatus = "queued"
    RunRunning   RunStatus = "running"
    RunSucceeded RunStatus = "succeeded"
    RunFailed    RunStatus = "failed"
    RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
    return s == RunSucceeded || s == RunFailed || s == RunCancelled
}

type SolveRequest struct {
    Instance       *instances.Definition `json:"instance,omitempty"`
    InstanceName   string                `json:"instanceName,omitempty"`
    Profile        string                `json:"profile,omitempty"`
    Config         *config.Patch         `json:"config,omitempty"`
    Starts         int                   `json:"starts,omitempty"`
    CallbackURL    string                `json:"callbackUrl,omitempty"`
    CallbackSecret string                `json:"callbackSecret,omitempty"`
}

type SolveAccepted struct {
    RunID  string    `json:"runId"`
    Status RunStatus `json:"status"`
}

// Run is the persisted record of one solve request.
type Run struct {
    ID        string     `json:"id"`
    Owner     string     `json:"owner,omitempty"`
    Status    RunStatus  `json:"status"`
    Instance  string     `json:"instance"`
    Customers int        `json:"customers"`
    Config    opt.Config `json:"config"`
    Starts    int        `json:"starts"`

    BestCost       *float64           `json:"bestCost,omitempty"`
    Feasible       bool               `json:"feasible"`
    Routes         [][]int            `json:"routes,omitempty"`
    Stopped        bool               `json:"stopped,omitempty"`
    Metrics        *opt.Metrics       `json:"metrics,omitempty"`
    StartSummaries []opt.StartSummary `json:"startSummaries,omitempty"`
    MeanBestCost   *float64           `json:"meanBestCost,omitempty"`
    StdDevBestCost *float64           `json:"stdDevBestCost,omitempty"`
    Error          string             `json:"error,omitempty"`
    SysInfo        *SysInfo           `json:"sysInfo,omitempty"`

    CallbackURL    string `json:"callbackUrl,omitempty"`
    CallbackSecret string `json:"-"`

    CreatedAt  time.Time  `json:"createdAt"`
    StartedAt  *time.Time `json:"startedAt,omitempty"`
    FinishedAt *time.Time `json:"finishedAt,omitempty"`
    DurationMs int64      `json:"durationMs,omitempty"`
}

type RunList struct {
    Items      []Run  `json:"items"`
    NextCursor string `json:"nextCursor,omitempty"`
}

// Profile is a named solver configuration.
type Profile struct {
    Name      string     `json:"name"`
    Config    opt.Config `json:"config"`
    UpdatedAt time.Time  `json:"updatedAt"`
}

// RunEvent is what subscribers of a run receive. Search events carry the
// engine's progress; the final "run.finished" event carries the status.
type RunEvent struct {
    RunID        string    `json:"runId"`
    Type         string    `json:"type"`
    Iteration    int       `json:"iteration"`
    BestCost     float64   `json:"bestCost"`
    CurrentCost  float64   `json:"currentCost,omitempty"`
    Temperature  float64   `json:"temperature,omitempty"`
    Neighborhood string    `json:"neighborhood,omitempty"`
    Start        int       `json:"start,omitempty"`
    Status       RunStatus `json:"status,omitempty"`
    At           time.Time `json:"at"`
}

const EventRunFinished = "run.finished"

// SysInfo describes the host a run executed on.
type SysInfo struct {
    Hostname    string  `json:"hostname"`
    OS          string  `json:"os"`
    Platform    string  `json:"platform,omitempty"`
    CPUModel    string  `json:"cpuModel,omitempty"`
    CPUCores    int     `json:"cpuCores"`
    MemoryTotal uint64  `json:"memoryTotal"`
    MemoryUsed  float64 `json:"memoryUsedPercent"`
}

// WebhookPayload is the body POSTed to a run's callback URL.
type WebhookPayload struct {
    ID        string    `json:"id"`
    Type      string    `json:"type"`
    RunID     string    `json:"runId"`
    Status    RunStatus `json:"status"`
    BestCost  *float64  `json:"bestCost,omitempty"`
    Feasible  bool      `json:"feasible"`
    Routes    [][]int   `json:"routes,omitempty"`
    Error     string    `json:"error,omitempty"`
    CreatedAt time.Time `json:"createdAt"`
}
