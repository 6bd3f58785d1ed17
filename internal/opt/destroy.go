package opt

import (
	"fmt"
	"math/rand"
	"sort"
)

// DestroyFunc removes k customers from s and returns the reduced solution
// together with the removed ids. It must not modify s.
type DestroyFunc func(in *Instance, s Solution, k int, rng *rand.Rand) (Solution, []int, error)

// Destroy operator names.
const (
	DestroyRandom  = "random"
	DestroyRelated = "related"
)

// LookupDestroy resolves a destroy operator by name.
func LookupDestroy(name string) (DestroyFunc, error) {
	switch name {
	case DestroyRandom:
		return func(_ *Instance, s Solution, k int, rng *rand.Rand) (Solution, []int, error) {
			return RandomRemoval(s, k, rng)
		}, nil
	case DestroyRelated:
		return RelatedRemoval, nil
	}
	return nil, fmt.Errorf("%w: destroy %q", ErrUnknownOperator, name)
}

// RandomRemoval removes k distinct customers sampled uniformly from s.
// Routes left without customers are kept; callers normalize.
func RandomRemoval(s Solution, k int, rng *rand.Rand) (Solution, []int, error) {
	pool := s.Customers()
	if k < 0 || k > len(pool) {
		return Solution{}, nil, fmt.Errorf("%w: requested %d of %d", ErrInsufficientCustomers, k, len(pool))
	}
	if k == 0 {
		return s.Clone(), []int{}, nil
	}
	// partial Fisher-Yates: the first k slots become the sample
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	removed := append([]int(nil), pool[:k]...)
	return removeCustomers(s, removed), removed, nil
}

// RelatedRemoval removes a random seed customer and the k-1 customers that
// are cheapest to reach from it.
func RelatedRemoval(in *Instance, s Solution, k int, rng *rand.Rand) (Solution, []int, error) {
	assigned := s.Customers()
	if k < 0 || k > len(assigned) {
		return Solution{}, nil, fmt.Errorf("%w: requested %d of %d", ErrInsufficientCustomers, k, len(assigned))
	}
	if k == 0 {
		return s.Clone(), []int{}, nil
	}
	seed := assigned[rng.Intn(len(assigned))]
	type related struct {
		id    int
		score float64
	}
	rel := make([]related, 0, len(assigned)-1)
	for _, c := range assigned {
		if c == seed {
			continue
		}
		d, err := in.Cost(seed, c)
		if err != nil {
			return Solution{}, nil, err
		}
		rel = append(rel, related{id: c, score: d})
	}
	sort.SliceStable(rel, func(i, j int) bool { return rel[i].score < rel[j].score })
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].id)
	}
	return removeCustomers(s, removed), removed, nil
}

func removeCustomers(s Solution, removed []int) Solution {
	rm := make(map[int]bool, len(removed))
	for _, c := range removed {
		rm[c] = true
	}
	out := Solution{Routes: make([]Route, len(s.Routes))}
	for i, r := range s.Routes {
		kept := make(Route, 0, len(r))
		for _, c := range r {
			if c == Depot || !rm[c] {
				kept = append(kept, c)
			}
		}
		out.Routes[i] = kept
	}
	return out
}
