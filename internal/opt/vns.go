package opt

import "context"

// runVNS is variable neighborhood search: shake with neighborhood k, descend
// with the same move while it strictly improves, then either adopt the
// result and restart from k=0 or move on to k+1. An outer iteration ends
// when every neighborhood failed to improve.
func (s *Searcher) runVNS(ctx context.Context) error {
	for it := 0; it < s.cfg.MaxIterations; it++ {
		if s.interrupted(ctx) {
			return nil
		}
		s.state.Iteration = it
		s.state.Neighborhood = 0
		for s.state.Neighborhood < len(s.moves) {
			mv := s.moves[s.state.Neighborhood]
			candidate := Normalize(mv.fn(s.state.Current, s.rng))
			cost, err := s.inst.SolutionCost(candidate)
			if err != nil {
				return err
			}
			candidate, cost, err = s.descend(mv, candidate, cost)
			if err != nil {
				return err
			}
			if cost < s.state.CurrentCost {
				s.commit(candidate, cost)
				s.track(candidate, cost, mv.name)
				s.metrics.MoveImprovements[mv.name]++
				s.metrics.NeighborhoodResets++
				s.state.Neighborhood = 0
				continue
			}
			s.metrics.Rejected++
			s.state.Neighborhood++
		}
		s.metrics.Iterations++
		s.progress(it)
	}
	return nil
}

// descend reapplies mv while the cost strictly decreases.
func (s *Searcher) descend(mv namedMove, sol Solution, cost float64) (Solution, float64, error) {
	for steps := 0; s.cfg.LocalSearchLimit == 0 || steps < s.cfg.LocalSearchLimit; steps++ {
		next := Normalize(mv.fn(sol, s.rng))
		nc, err := s.inst.SolutionCost(next)
		if err != nil {
			return Solution{}, 0, err
		}
		if nc >= cost {
			break
		}
		sol, cost = next, nc
		s.metrics.LocalSearchSteps++
	}
	return sol, cost, nil
}

// runAnnealing is plain simulated annealing: one neighborhood move per
// iteration, picked uniformly when several are configured.
func (s *Searcher) runAnnealing(ctx context.Context) error {
	for it := 0; it < s.cfg.MaxIterations; it++ {
		if s.interrupted(ctx) {
			return nil
		}
		s.state.Iteration = it
		s.state.Temperature = s.cooling.Temperature(s.state.Temperature, it)

		mv := s.moves[0]
		if len(s.moves) > 1 {
			mv = s.moves[s.rng.Intn(len(s.moves))]
		}
		candidate := Normalize(mv.fn(s.state.Current, s.rng))
		cost, err := s.inst.SolutionCost(candidate)
		if err != nil {
			return err
		}
		worse := cost >= s.state.CurrentCost
		if s.acceptance.Accept(cost, s.state.CurrentCost, s.state.Temperature, s.rng) {
			s.commit(candidate, cost)
			if worse {
				s.metrics.AcceptedWorse++
			}
		} else {
			s.metrics.Rejected++
		}
		if s.track(candidate, cost, mv.name) {
			s.metrics.MoveImprovements[mv.name]++
		}
		s.metrics.Iterations++
		s.progress(it)
	}
	return nil
}
