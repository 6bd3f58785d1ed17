package opt

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase is the lifecycle stage of a Searcher.
type Phase int

const (
	PhaseInitialized Phase = iota
	PhaseIterating
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialized:
		return "initialized"
	case PhaseIterating:
		return "iterating"
	case PhaseTerminated:
		return "terminated"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// SearchState is the mutable state of one run. Only the owning Searcher
// changes it.
type SearchState struct {
	Phase        Phase
	Current      Solution
	CurrentCost  float64
	Best         Solution
	BestCost     float64
	Iteration    int
	Temperature  float64
	Neighborhood int
}

// Event types delivered to an Observer.
const (
	EventImproved = "improved"
	EventProgress = "progress"
	EventFinished = "finished"
)

// Event reports search progress.
type Event struct {
	Type         string  `json:"type"`
	Iteration    int     `json:"iteration"`
	BestCost     float64 `json:"bestCost"`
	CurrentCost  float64 `json:"currentCost"`
	Temperature  float64 `json:"temperature,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
}

// Observer receives events synchronously from the search loop.
type Observer func(Event)

// WeightSnapshot records adaptive operator weights at an iteration.
type WeightSnapshot struct {
	Iteration int                `json:"iteration"`
	Destroy   map[string]float64 `json:"destroy"`
	Repair    map[string]float64 `json:"repair"`
}

// Metrics summarizes what happened during a run.
type Metrics struct {
	Iterations          int                `json:"iterations"`
	Improvements        int                `json:"improvements"`
	AcceptedWorse       int                `json:"acceptedWorse"`
	Rejected            int                `json:"rejected"`
	InitialCost         float64            `json:"initialCost"`
	BestCost            float64            `json:"bestCost"`
	FinalCost           float64            `json:"finalCost"`
	DestroySelects      map[string]int     `json:"destroySelects,omitempty"`
	RepairSelects       map[string]int     `json:"repairSelects,omitempty"`
	FinalDestroyWeights map[string]float64 `json:"finalDestroyWeights,omitempty"`
	FinalRepairWeights  map[string]float64 `json:"finalRepairWeights,omitempty"`
	MoveImprovements    map[string]int     `json:"moveImprovements,omitempty"`
	NeighborhoodResets  int                `json:"neighborhoodResets,omitempty"`
	LocalSearchSteps    int                `json:"localSearchSteps,omitempty"`
	Snapshots           []WeightSnapshot   `json:"snapshots,omitempty"`
}

// Result is what a finished run returns.
type Result struct {
	Report
	Best      Solution      `json:"-"`
	Algorithm Algorithm     `json:"algorithm"`
	Seed      int64         `json:"seed"`
	Stopped   bool          `json:"stopped"`
	Feasible  bool          `json:"feasible"`
	Metrics   Metrics       `json:"metrics"`
	Duration  time.Duration `json:"duration"`
}

type namedDestroy struct {
	name string
	fn   DestroyFunc
}

type namedRepair struct {
	name string
	fn   RepairFunc
}

type namedMove struct {
	name string
	fn   MoveFunc
}

// Searcher runs one search over an Instance. It is not safe for concurrent
// use and runs at most once.
type Searcher struct {
	inst    *Instance
	cfg     Config
	rng     *rand.Rand
	log     logrus.FieldLogger
	observe Observer

	acceptance Acceptance
	cooling    Cooling
	destroy    []namedDestroy
	repair     []namedRepair
	moves      []namedMove
	destroyW   []float64
	repairW    []float64

	state   SearchState
	metrics Metrics
	stopped bool
}

// Option customizes a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger; the default is logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Searcher) { s.log = l }
}

// WithObserver registers a progress callback.
func WithObserver(o Observer) Option {
	return func(s *Searcher) { s.observe = o }
}

// NewSearcher validates cfg (after applying defaults) and prepares a run.
func NewSearcher(inst *Instance, cfg Config, opts ...Option) (*Searcher, error) {
	if inst == nil {
		return nil, fmt.Errorf("%w: nil instance", ErrInvalidInstance)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Searcher{
		inst: inst,
		cfg:  cfg,
		rng:  NewRand(cfg.Seed),
		log:  logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"algorithm": cfg.Algorithm, "seed": cfg.Seed, "instance": inst.Name()})

	if cfg.Acceptance == AcceptStrict {
		s.acceptance = StrictImprovement{}
		s.cooling = frozen{}
	} else {
		s.acceptance = Metropolis{}
		if cfg.Cooling == CoolingLinear {
			s.cooling = LinearCooling{Initial: cfg.InitialTemp, Floor: cfg.MinTemp, MaxIterations: cfg.MaxIterations}
		} else {
			s.cooling = GeometricCooling{Initial: cfg.InitialTemp, Rate: cfg.CoolingRate}
		}
	}

	switch cfg.Algorithm {
	case AlgorithmALNS, AlgorithmLNS:
		for i, n := range cfg.DestroyOps {
			fn, _ := LookupDestroy(n)
			s.destroy = append(s.destroy, namedDestroy{n, fn})
			s.destroyW = append(s.destroyW, weightAt(cfg.DestroyWeights, i))
		}
		for i, n := range cfg.RepairOps {
			fn, _ := LookupRepair(n)
			s.repair = append(s.repair, namedRepair{n, fn})
			s.repairW = append(s.repairW, weightAt(cfg.RepairWeights, i))
		}
		s.metrics.DestroySelects = map[string]int{}
		s.metrics.RepairSelects = map[string]int{}
	case AlgorithmVNS, AlgorithmSA:
		for _, n := range cfg.Neighborhoods {
			fn, _ := LookupMove(n)
			s.moves = append(s.moves, namedMove{n, fn})
		}
		s.metrics.MoveImprovements = map[string]int{}
	}
	return s, nil
}

func weightAt(w []float64, i int) float64 {
	if i < len(w) {
		return w[i]
	}
	return 1
}

// Config returns the effective configuration.
func (s *Searcher) Config() Config { return s.cfg }

// State returns a copy of the current search state.
func (s *Searcher) State() SearchState {
	st := s.state
	st.Current = s.state.Current.Clone()
	st.Best = s.state.Best.Clone()
	return st
}

// Run builds the initial solution and iterates until the iteration budget
// is spent or ctx is done. A cancelled run is not an error: the result has
// Stopped set and carries the best solution found so far. On an operator or
// cost failure the result still holds the last valid best.
func (s *Searcher) Run(ctx context.Context) (Result, error) {
	if s.state.Phase != PhaseInitialized {
		return Result{}, fmt.Errorf("opt: searcher already %s", s.state.Phase)
	}
	start := time.Now()
	initial, err := s.construct()
	if err != nil {
		s.state.Phase = PhaseTerminated
		return Result{}, fmt.Errorf("initial solution: %w", err)
	}
	cost, err := s.inst.SolutionCost(initial)
	if err != nil {
		s.state.Phase = PhaseTerminated
		return Result{}, fmt.Errorf("initial solution: %w", err)
	}
	s.state = SearchState{
		Phase:       PhaseIterating,
		Current:     initial,
		CurrentCost: cost,
		Best:        initial.Clone(),
		BestCost:    cost,
	}
	s.metrics.InitialCost = cost
	s.log.WithField("cost", cost).Info("search started")

	switch s.cfg.Algorithm {
	case AlgorithmVNS:
		err = s.runVNS(ctx)
	case AlgorithmSA:
		err = s.runAnnealing(ctx)
	default:
		err = s.runDestroyRepair(ctx)
	}
	s.state.Phase = PhaseTerminated
	res := s.result(time.Since(start))
	if err != nil {
		s.log.WithError(err).WithField("bestCost", s.state.BestCost).Error("search aborted")
		return res, err
	}
	s.emit(EventFinished, "")
	s.log.WithFields(logrus.Fields{
		"bestCost":   res.BestCost,
		"iterations": res.Metrics.Iterations,
		"stopped":    res.Stopped,
		"duration":   res.Duration,
	}).Info("search finished")
	return res, nil
}

func (s *Searcher) construct() (Solution, error) {
	if s.cfg.Construction == ConstructEvenSplit {
		return EvenSplit(s.inst, s.cfg.Vehicles, s.rng)
	}
	return GreedyFill(s.inst)
}

// interrupted checks the stop signal once per outer iteration.
func (s *Searcher) interrupted(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	s.stopped = true
	s.log.WithField("iteration", s.state.Iteration).Warn("search interrupted")
	return true
}

// commit makes candidate the current solution.
func (s *Searcher) commit(candidate Solution, cost float64) {
	s.state.Current = candidate
	s.state.CurrentCost = cost
}

// track updates the best solution when candidate beats it, regardless of
// whether candidate was accepted.
func (s *Searcher) track(candidate Solution, cost float64, neighborhood string) bool {
	if cost >= s.state.BestCost {
		return false
	}
	s.state.Best = candidate.Clone()
	s.state.BestCost = cost
	s.metrics.Improvements++
	s.emit(EventImproved, neighborhood)
	return true
}

// progress logs and reports every LogEvery iterations.
func (s *Searcher) progress(iteration int) {
	if s.cfg.LogEvery <= 0 || iteration%s.cfg.LogEvery != 0 {
		return
	}
	s.log.WithFields(logrus.Fields{
		"iteration":   iteration,
		"bestCost":    s.state.BestCost,
		"currentCost": s.state.CurrentCost,
		"temperature": s.state.Temperature,
	}).Debug("search progress")
	s.emit(EventProgress, "")
}

func (s *Searcher) emit(typ, neighborhood string) {
	if s.observe == nil {
		return
	}
	s.observe(Event{
		Type:         typ,
		Iteration:    s.state.Iteration,
		BestCost:     s.state.BestCost,
		CurrentCost:  s.state.CurrentCost,
		Temperature:  s.state.Temperature,
		Neighborhood: neighborhood,
	})
}

func (s *Searcher) result(d time.Duration) Result {
	m := s.metrics
	m.BestCost = s.state.BestCost
	m.FinalCost = s.state.CurrentCost
	if len(s.destroy) > 0 {
		m.FinalDestroyWeights = s.destroyWeights()
		m.FinalRepairWeights = s.repairWeights()
	}
	feasible, _ := s.inst.Feasible(s.state.Best)
	return Result{
		Report:    NewReport(s.state.Best, s.state.BestCost),
		Best:      s.state.Best.Clone(),
		Algorithm: s.cfg.Algorithm,
		Seed:      s.cfg.Seed,
		Stopped:   s.stopped,
		Feasible:  feasible,
		Metrics:   m,
		Duration:  d,
	}
}
