package api

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    "vrpsearch/internal/config"
    "vrpsearch/internal/instances"
    "vrpsearch/internal/metrics"
    "vrpsearch/internal/model"
    "vrpsearch/internal/opt"
    "vrpsearch/internal/store"
    "vrpsearch/internal/sysinfo"
)

// runRegistry holds the cancel functions of runs that have not finished.
type runRegistry struct {
    mu      sync.Mutex
    cancels map[string]context.CancelFunc
}

func newRunRegistry() *runRegistry {
    return &runRegistry{cancels: map[string]context.CancelFunc{}}
}

func (g *runRegistry) add(id string, cancel context.CancelFunc) {
    g.mu.Lock(); defer g.mu.Unlock()
    g.cancels[id] = cancel
}

func (g *runRegistry) remove(id string) {
    g.mu.Lock(); defer g.mu.Unlock()
    delete(g.cancels, id)
}

// cancel reports whether id was still active.
func (g *runRegistry) cancel(id string) bool {
    g.mu.Lock(); defer g.mu.Unlock()
    c, ok := g.cancels[id]
    if ok { c() }
    return ok
}

func (g *runRegistry) cancelAll() {
    g.mu.Lock(); defer g.mu.Unlock()
    for _, c := range g.cancels { c() }
}

type runJob struct {
    run  model.Run
    inst *opt.Instance
}

// resolveConfig layers the request config over the named profile.
func (s *Server) resolveConfig(ctx context.Context, profile string, over *config.Patch) (opt.Config, error) {
    var base opt.Config
    if profile != "" {
        p, err := s.Store.GetProfile(ctx, profile)
        if errors.Is(err, store.ErrNotFound) {
            return opt.Config{}, fmt.Errorf("%w: %q", errUnknownProfile, profile)
        }
        if err != nil {
            return opt.Config{}, err
        }
        base = p.Config
    }
    if over != nil {
        base = config.Overlay(base, *over)
    }
    return base, nil
}

// prepareRun resolves the instance and the configuration and records the
// queued run. Nothing is recorded when the request is invalid.
func (s *Server) prepareRun(ctx context.Context, owner string, req model.SolveRequest) (*runJob, error) {
    var src instances.Source
    if req.Instance != nil {
        src = instances.InlineSource{Def: *req.Instance}
    } else {
        src = instances.BuiltinSource(req.InstanceName)
    }
    def, inst, err := instances.Resolve(src)
    if err != nil {
        return nil, err
    }
    if err := inst.CheckServiceable(); err != nil {
        return nil, err
    }
    cfg, err := s.resolveConfig(ctx, req.Profile, req.Config)
    if err != nil {
        return nil, err
    }
    cfg = def.Apply(cfg).WithDefaults()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    starts := req.Starts
    if starts == 0 {
        starts = 1
    }
    run := model.Run{
        ID:             uuid.New().String(),
        Owner:          owner,
        Status:         model.RunQueued,
        Instance:       inst.Name(),
        Customers:      inst.Len(),
        Config:         cfg,
        Starts:         starts,
        CallbackURL:    req.CallbackURL,
        CallbackSecret: req.CallbackSecret,
        CreatedAt:      time.Now().UTC(),
    }
    if err := s.Store.CreateRun(ctx, run); err != nil {
        return nil, fmt.Errorf("create run: %w", err)
    }
    return &runJob{run: run, inst: inst}, nil
}

// startRun launches the search in the background and returns immediately.
func (s *Server) startRun(job *runJob) {
    ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout())
    s.runs.add(job.run.ID, cancel)
    s.wg.Add(1)
    go func() {
        defer s.wg.Done()
        defer cancel()
        s.execute(ctx, job)
    }()
}

// runSync executes the search on the caller's goroutine; it ends early when
// parent is done.
func (s *Server) runSync(parent context.Context, job *runJob) model.Run {
    ctx, cancel := context.WithTimeout(parent, s.runTimeout())
    defer cancel()
    s.runs.add(job.run.ID, cancel)
    s.wg.Add(1)
    defer s.wg.Done()
    return s.execute(ctx, job)
}

func (s *Server) runTimeout() time.Duration {
    if s.Cfg.RunTimeout > 0 {
        return s.Cfg.RunTimeout
    }
    return 5 * time.Minute
}

// execute drives a run from queued to a terminal status. The final record
// is written with a fresh context so a cancelled run is still recorded.
func (s *Server) execute(ctx context.Context, job *runJob) model.Run {
    defer s.runs.remove(job.run.ID)
    run := job.run
    log := s.Log.WithFields(logrus.Fields{"run": run.ID, "instance": run.Instance, "algorithm": run.Config.Algorithm})

    started := time.Now().UTC()
    run.Status = model.RunRunning
    run.StartedAt = &started
    if err := s.Store.UpdateRun(ctx, run); err != nil {
        log.WithError(err).Warn("mark run running")
    }
    s.Broker.Publish(run.ID, model.RunEvent{RunID: run.ID, Type: "run.started", Status: run.Status, At: started})

    metrics.SearchActive.Inc()
    res, iterations, err := s.search(ctx, job, &run, log)
    metrics.SearchActive.Dec()

    finished := time.Now().UTC()
    run.FinishedAt = &finished
    run.DurationMs = finished.Sub(started).Milliseconds()
    if res.Routes != nil {
        cost := res.BestCost
        run.BestCost = &cost
        run.Routes = res.Routes
        run.Feasible = res.Feasible
        run.Stopped = res.Stopped
        m := res.Metrics
        m.Snapshots = nil
        run.Metrics = &m
    }
    switch {
    case err != nil:
        run.Status = model.RunFailed
        run.Error = err.Error()
    case res.Stopped && errors.Is(ctx.Err(), context.Canceled):
        run.Status = model.RunCancelled
    default:
        // a run that hit RUN_TIMEOUT still carries a valid best solution
        run.Status = model.RunSucceeded
    }
    info := sysinfo.Collect()
    run.SysInfo = &info

    bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if len(res.Metrics.Snapshots) > 0 {
        if err := s.Store.SaveRunSnapshots(bg, run.ID, res.Metrics.Snapshots); err != nil {
            log.WithError(err).Warn("save snapshots")
        }
    }
    if err := s.Store.UpdateRun(bg, run); err != nil {
        log.WithError(err).Error("record run outcome")
    }
    metrics.ObserveRun(run.Instance, string(run.Config.Algorithm), string(run.Status), iterations, res.BestCost, run.BestCost != nil, finished.Sub(started))

    evt := model.RunEvent{RunID: run.ID, Type: model.EventRunFinished, Status: run.Status, Iteration: iterations, At: finished}
    if run.BestCost != nil {
        evt.BestCost = *run.BestCost
    }
    s.Broker.Publish(run.ID, evt)
    if _, err := s.Pub.RunFinished(bg, run); err != nil {
        log.WithError(err).Warn("enqueue webhook")
    }
    log.WithFields(logrus.Fields{"status": run.Status, "bestCost": res.BestCost, "iterations": iterations}).Info("run finished")
    return run
}

// search runs one or several starts and fills the multi-start summary of
// run. Engine events are forwarded to the broker; the start index advances
// on every finished start.
func (s *Server) search(ctx context.Context, job *runJob, run *model.Run, log logrus.FieldLogger) (opt.Result, int, error) {
    runID := job.run.ID
    start := 0
    observer := func(e opt.Event) {
        s.Broker.Publish(runID, model.RunEvent{
            RunID:        runID,
            Type:         e.Type,
            Iteration:    e.Iteration,
            BestCost:     e.BestCost,
            CurrentCost:  e.CurrentCost,
            Temperature:  e.Temperature,
            Neighborhood: e.Neighborhood,
            Start:        start,
            At:           time.Now().UTC(),
        })
        if e.Type == opt.EventFinished {
            start++
        }
    }
    opts := []opt.Option{opt.WithLogger(log), opt.WithObserver(observer)}
    if job.run.Starts <= 1 {
        srch, err := opt.NewSearcher(job.inst, job.run.Config, opts...)
        if err != nil {
            return opt.Result{}, 0, err
        }
        res, err := srch.Run(ctx)
        return res, res.Metrics.Iterations, err
    }
    // a failed multi-start still carries the starts that finished
    ms, err := opt.MultiStart(ctx, job.inst, job.run.Config, job.run.Starts, opts...)
    if len(ms.Starts) == 0 {
        return opt.Result{}, 0, err
    }
    iterations := 0
    for _, st := range ms.Starts {
        iterations += st.Iterations
    }
    res := ms.Best
    // the run counts as stopped when any start was cut short
    for _, st := range ms.Starts {
        res.Stopped = res.Stopped || st.Stopped
    }
    if len(ms.Starts) < job.run.Starts {
        res.Stopped = true
    }
    mean, sd := ms.MeanBestCost, ms.StdDevBestCost
    run.StartSummaries = ms.Starts
    run.MeanBestCost = &mean
    run.StdDevBestCost = &sd
    return res, iterations, err
}
