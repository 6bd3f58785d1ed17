package opt

import (
	"fmt"
	"math"
)

// Algorithm selects the search loop.
type Algorithm string

const (
	AlgorithmALNS Algorithm = "alns"
	AlgorithmLNS  Algorithm = "lns"
	AlgorithmVNS  Algorithm = "vns"
	AlgorithmSA   Algorithm = "sa"
)

// Algorithms lists the supported loops.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmALNS, AlgorithmLNS, AlgorithmVNS, AlgorithmSA}
}

// Config is the search configuration. Zero fields are filled by WithDefaults.
type Config struct {
	Algorithm     Algorithm `json:"algorithm" yaml:"algorithm"`
	MaxIterations int       `json:"maxIterations" yaml:"maxIterations"`
	Seed          int64     `json:"seed" yaml:"seed"`

	// destroy/repair loops
	RemovalCount    int       `json:"removalCount,omitempty" yaml:"removalCount,omitempty"`
	RemovalFraction float64   `json:"removalFraction,omitempty" yaml:"removalFraction,omitempty"`
	DestroyOps      []string  `json:"destroyOps,omitempty" yaml:"destroyOps,omitempty"`
	RepairOps       []string  `json:"repairOps,omitempty" yaml:"repairOps,omitempty"`
	DestroyWeights  []float64 `json:"destroyWeights,omitempty" yaml:"destroyWeights,omitempty"`
	RepairWeights   []float64 `json:"repairWeights,omitempty" yaml:"repairWeights,omitempty"`

	// acceptance
	Acceptance  string  `json:"acceptance,omitempty" yaml:"acceptance,omitempty"`
	Cooling     string  `json:"cooling,omitempty" yaml:"cooling,omitempty"`
	InitialTemp float64 `json:"initialTemp,omitempty" yaml:"initialTemp,omitempty"`
	CoolingRate float64 `json:"coolingRate,omitempty" yaml:"coolingRate,omitempty"`
	MinTemp     float64 `json:"minTemp,omitempty" yaml:"minTemp,omitempty"`

	// neighborhood loops (vns, sa)
	Neighborhoods    []string `json:"neighborhoods,omitempty" yaml:"neighborhoods,omitempty"`
	LocalSearchLimit int      `json:"localSearchLimit,omitempty" yaml:"localSearchLimit,omitempty"`

	Construction string `json:"construction,omitempty" yaml:"construction,omitempty"`
	Vehicles     int    `json:"vehicles,omitempty" yaml:"vehicles,omitempty"`

	LogEvery      int `json:"logEvery,omitempty" yaml:"logEvery,omitempty"`
	SnapshotEvery int `json:"snapshotEvery,omitempty" yaml:"snapshotEvery,omitempty"`
}

// DefaultConfig returns the settings each loop runs with when nothing else
// is given.
func DefaultConfig(algo Algorithm) Config {
	c := Config{
		Algorithm:     algo,
		MaxIterations: 100,
		Construction:  ConstructGreedyFill,
		LogEvery:      10,
		SnapshotEvery: 50,
	}
	switch algo {
	case AlgorithmALNS:
		c.RemovalCount = 1
		c.DestroyOps = []string{DestroyRandom}
		c.RepairOps = []string{RepairGreedy}
		c.Acceptance = AcceptMetropolis
		c.Cooling = CoolingLinear
		c.InitialTemp = 1
		c.MinTemp = 0.01
	case AlgorithmLNS:
		c.RemovalFraction = 0.5
		c.DestroyOps = []string{DestroyRandom}
		c.RepairOps = []string{RepairGreedy}
		c.Acceptance = AcceptStrict
	case AlgorithmVNS:
		c.Neighborhoods = DefaultNeighborhoods()
		c.Acceptance = AcceptStrict
	case AlgorithmSA:
		c.MaxIterations = 500
		c.Neighborhoods = []string{MoveSwapRoutes}
		c.Acceptance = AcceptMetropolis
		c.Cooling = CoolingGeometric
		c.InitialTemp = 1000
		c.CoolingRate = 0.995
		c.LogEvery = 50
	}
	return c
}

// WithDefaults fills unset fields from DefaultConfig. An empty algorithm
// means ALNS.
func (c Config) WithDefaults() Config {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmALNS
	}
	d := DefaultConfig(c.Algorithm)
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.RemovalCount == 0 && c.RemovalFraction == 0 {
		c.RemovalCount, c.RemovalFraction = d.RemovalCount, d.RemovalFraction
	}
	if len(c.DestroyOps) == 0 {
		c.DestroyOps = d.DestroyOps
	}
	if len(c.RepairOps) == 0 {
		c.RepairOps = d.RepairOps
	}
	if c.Acceptance == "" {
		c.Acceptance = d.Acceptance
	}
	if c.Cooling == "" {
		c.Cooling = d.Cooling
		if c.Cooling == "" && c.Acceptance == AcceptMetropolis {
			c.Cooling = CoolingGeometric
		}
	}
	if c.InitialTemp == 0 {
		c.InitialTemp = d.InitialTemp
		if c.InitialTemp == 0 {
			c.InitialTemp = 1
		}
	}
	if c.CoolingRate == 0 {
		c.CoolingRate = d.CoolingRate
		if c.CoolingRate == 0 {
			c.CoolingRate = 0.995
		}
	}
	if c.MinTemp == 0 {
		c.MinTemp = d.MinTemp
		if c.MinTemp == 0 && c.Cooling == CoolingLinear {
			c.MinTemp = 0.01
		}
	}
	if len(c.Neighborhoods) == 0 {
		c.Neighborhoods = d.Neighborhoods
	}
	if c.Construction == "" {
		c.Construction = d.Construction
	}
	if c.LogEvery == 0 {
		c.LogEvery = d.LogEvery
	}
	if c.SnapshotEvery == 0 {
		c.SnapshotEvery = d.SnapshotEvery
	}
	return c
}

// Validate checks a config after WithDefaults.
func (c Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}
	switch c.Algorithm {
	case AlgorithmALNS, AlgorithmLNS, AlgorithmVNS, AlgorithmSA:
	default:
		return bad("unknown algorithm %q", c.Algorithm)
	}
	if c.MaxIterations <= 0 {
		return bad("maxIterations must be > 0")
	}
	if c.RemovalCount < 0 {
		return bad("removalCount must be >= 0")
	}
	if c.RemovalFraction < 0 || c.RemovalFraction > 1 || math.IsNaN(c.RemovalFraction) {
		return bad("removalFraction must be in [0,1]")
	}
	switch c.Acceptance {
	case AcceptStrict:
	case AcceptMetropolis:
		if !(c.InitialTemp > 0) {
			return bad("initialTemp must be > 0")
		}
		switch c.Cooling {
		case CoolingGeometric:
			if !(c.CoolingRate > 0 && c.CoolingRate < 1) {
				return bad("coolingRate must be in (0,1)")
			}
		case CoolingLinear:
			if c.MinTemp < 0 {
				return bad("minTemp must be >= 0")
			}
		default:
			return bad("unknown cooling %q", c.Cooling)
		}
	default:
		return bad("unknown acceptance %q", c.Acceptance)
	}
	switch c.Algorithm {
	case AlgorithmALNS, AlgorithmLNS:
		if err := checkOps(c.DestroyOps, c.DestroyWeights, func(n string) error { _, err := LookupDestroy(n); return err }); err != nil {
			return bad("destroyOps: %v", err)
		}
		if err := checkOps(c.RepairOps, c.RepairWeights, func(n string) error { _, err := LookupRepair(n); return err }); err != nil {
			return bad("repairOps: %v", err)
		}
	case AlgorithmVNS, AlgorithmSA:
		if err := checkOps(c.Neighborhoods, nil, func(n string) error { _, err := LookupMove(n); return err }); err != nil {
			return bad("neighborhoods: %v", err)
		}
		if c.LocalSearchLimit < 0 {
			return bad("localSearchLimit must be >= 0")
		}
	}
	switch c.Construction {
	case ConstructGreedyFill:
	case ConstructEvenSplit:
		if c.Vehicles < 1 {
			return bad("even-split needs vehicles >= 1")
		}
	default:
		return bad("unknown construction %q", c.Construction)
	}
	if c.LogEvery < 0 || c.SnapshotEvery < 0 {
		return bad("logEvery and snapshotEvery must be >= 0")
	}
	return nil
}

func checkOps(names []string, weights []float64, lookup func(string) error) error {
	if len(names) == 0 {
		return fmt.Errorf("at least one operator required")
	}
	for _, n := range names {
		if err := lookup(n); err != nil {
			return err
		}
	}
	if len(weights) > 0 && len(weights) != len(names) {
		return fmt.Errorf("weights must have length %d", len(names))
	}
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("weights must be >= 0")
		}
	}
	return nil
}
