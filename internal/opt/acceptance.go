package opt

import (
	"math"
	"math/rand"
)

// Acceptance decides whether a candidate replaces the current solution.
type Acceptance interface {
	Accept(candidate, current, temperature float64, rng *rand.Rand) bool
}

// Acceptance names accepted by Config.Acceptance.
const (
	AcceptMetropolis = "metropolis"
	AcceptStrict     = "strict"
)

// Metropolis always takes improvements and takes a worse candidate with
// probability exp(-delta/T). A random draw is made only for non-improving
// candidates.
type Metropolis struct{}

func (Metropolis) Accept(candidate, current, temperature float64, rng *rand.Rand) bool {
	delta := candidate - current
	if delta < 0 {
		return true
	}
	if temperature <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-delta/temperature)
}

// StrictImprovement takes a candidate only when it is strictly cheaper.
type StrictImprovement struct{}

func (StrictImprovement) Accept(candidate, current, _ float64, _ *rand.Rand) bool {
	return candidate < current
}

// Cooling produces the temperature for each iteration.
type Cooling interface {
	Temperature(prev float64, iteration int) float64
}

// Cooling schedule names.
const (
	CoolingGeometric = "geometric"
	CoolingLinear    = "linear"
)

// GeometricCooling starts at Initial and multiplies by Rate every iteration.
type GeometricCooling struct {
	Initial float64
	Rate    float64
}

func (g GeometricCooling) Temperature(prev float64, iteration int) float64 {
	if iteration == 0 {
		return g.Initial
	}
	return prev * g.Rate
}

// LinearCooling decreases from Initial to zero over MaxIterations and never
// drops below Floor.
type LinearCooling struct {
	Initial       float64
	Floor         float64
	MaxIterations int
}

func (l LinearCooling) Temperature(_ float64, iteration int) float64 {
	t := l.Initial * (1 - float64(iteration)/float64(l.MaxIterations))
	return math.Max(l.Floor, t)
}

// frozen is used by strict-acceptance runs.
type frozen struct{}

func (frozen) Temperature(float64, int) float64 { return 0 }
