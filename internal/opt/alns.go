package opt

import (
	"context"
	"math"
	"math/rand"
)

// operator weight updates
const (
	rewardBest     = 0.1
	rewardAccepted = 0.01
	decayRejected  = 0.999
	minWeight      = 0.01
)

// runDestroyRepair is the ALNS/LNS loop: destroy, repair, score, accept,
// track the best and cool down, for MaxIterations iterations.
func (s *Searcher) runDestroyRepair(ctx context.Context) error {
	for it := 0; it < s.cfg.MaxIterations; it++ {
		if s.interrupted(ctx) {
			return nil
		}
		s.state.Iteration = it
		s.state.Temperature = s.cooling.Temperature(s.state.Temperature, it)

		di := selectOp(s.destroyW, s.rng)
		ri := selectOp(s.repairW, s.rng)
		s.metrics.DestroySelects[s.destroy[di].name]++
		s.metrics.RepairSelects[s.repair[ri].name]++

		candidate, err := s.destroyRepair(di, ri)
		if err != nil {
			return err
		}
		cost, err := s.inst.SolutionCost(candidate)
		if err != nil {
			return err
		}
		accepted := s.acceptance.Accept(cost, s.state.CurrentCost, s.state.Temperature, s.rng)
		worse := cost >= s.state.CurrentCost
		if accepted {
			s.commit(candidate, cost)
		}
		improved := s.track(candidate, cost, "")
		switch {
		case improved:
			s.destroyW[di] += rewardBest
			s.repairW[ri] += rewardBest
		case accepted:
			s.destroyW[di] += rewardAccepted
			s.repairW[ri] += rewardAccepted
		default:
			s.destroyW[di] = math.Max(minWeight, s.destroyW[di]*decayRejected)
			s.repairW[ri] = math.Max(minWeight, s.repairW[ri]*decayRejected)
		}
		if accepted && worse {
			s.metrics.AcceptedWorse++
		}
		if !accepted {
			s.metrics.Rejected++
		}
		s.metrics.Iterations++
		if s.cfg.SnapshotEvery > 0 && s.metrics.Iterations%s.cfg.SnapshotEvery == 0 {
			s.metrics.Snapshots = append(s.metrics.Snapshots, WeightSnapshot{
				Iteration: s.metrics.Iterations,
				Destroy:   s.destroyWeights(),
				Repair:    s.repairWeights(),
			})
		}
		s.progress(it)
	}
	return nil
}

// destroyRepair produces a normalized candidate from the current solution.
// The current solution is never touched.
func (s *Searcher) destroyRepair(di, ri int) (Solution, error) {
	k := s.removalCount()
	reduced, removed, err := s.destroy[di].fn(s.inst, s.state.Current, k, s.rng)
	if err != nil {
		return Solution{}, err
	}
	repaired, err := s.repair[ri].fn(s.inst, Normalize(reduced), removed)
	if err != nil {
		return Solution{}, err
	}
	return Normalize(repaired), nil
}

// removalCount derives k from RemovalCount or RemovalFraction and clamps it
// to the customers currently routed.
func (s *Searcher) removalCount() int {
	n := s.state.Current.CustomerCount()
	k := s.cfg.RemovalCount
	if k <= 0 {
		k = int(s.cfg.RemovalFraction * float64(n))
		if k < 1 {
			k = 1
		}
	}
	if k > n {
		s.log.WithField("requested", k).WithField("available", n).Debug("removal count clamped")
		k = n
	}
	return k
}

// selectOp is a roulette wheel over weights. A single operator is chosen
// without drawing from rng.
func selectOp(weights []float64, rng *rand.Rand) int {
	if len(weights) <= 1 {
		return 0
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

func (s *Searcher) destroyWeights() map[string]float64 {
	out := make(map[string]float64, len(s.destroy))
	for i, d := range s.destroy {
		out[d.name] = s.destroyW[i]
	}
	return out
}

func (s *Searcher) repairWeights() map[string]float64 {
	out := make(map[string]float64, len(s.repair))
	for i, r := range s.repair {
		out[r.name] = s.repairW[i]
	}
	return out
}
