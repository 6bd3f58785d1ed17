package opt

import (
	"fmt"
	"math/rand"
)

// Construction names accepted by Config.Construction.
const (
	ConstructGreedyFill = "greedy-fill"
	ConstructEvenSplit  = "even-split"
)

// GreedyFill walks customers in ascending id order and appends each to the
// open route while it fits; otherwise the route is closed and a new one is
// started with that customer.
func GreedyFill(in *Instance) (Solution, error) {
	if err := in.CheckServiceable(); err != nil {
		return Solution{}, err
	}
	sol := Solution{}
	cur := Route{Depot}
	load := 0.0
	for _, c := range in.ids {
		d := in.demand[c]
		if load+d <= in.capacity {
			cur = append(cur, c)
			load += d
			continue
		}
		sol.Routes = append(sol.Routes, append(cur, Depot))
		cur = Route{Depot, c}
		load = d
	}
	sol.Routes = append(sol.Routes, append(cur, Depot))
	return Normalize(sol), nil
}

// EvenSplit shuffles the customers and deals them into vehicles routes of
// equal size; leftovers join the last route. Capacity is not considered.
func EvenSplit(in *Instance, vehicles int, rng *rand.Rand) (Solution, error) {
	if vehicles < 1 {
		return Solution{}, fmt.Errorf("%w: even-split needs at least one vehicle", ErrInvalidConfig)
	}
	if err := in.CheckServiceable(); err != nil {
		return Solution{}, err
	}
	ids := in.Customers()
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	per := len(ids) / vehicles
	sol := Solution{Routes: make([]Route, 0, vehicles)}
	for v := 0; v < vehicles; v++ {
		r := Route{Depot}
		r = append(r, ids[v*per:(v+1)*per]...)
		sol.Routes = append(sol.Routes, append(r, Depot))
	}
	if rest := ids[vehicles*per:]; len(rest) > 0 {
		last := sol.Routes[len(sol.Routes)-1]
		last = append(last[:len(last)-1], rest...)
		sol.Routes[len(sol.Routes)-1] = append(last, Depot)
	}
	return Normalize(sol), nil
}
