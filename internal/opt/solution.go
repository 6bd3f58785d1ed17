package opt

import "fmt"

// Route is an ordered visit sequence framed by the depot: [0, c1, ..., cn, 0].
type Route []int

// Clone returns an independent copy of r.
func (r Route) Clone() Route { return append(Route(nil), r...) }

// Solution partitions customers into routes. Route order is kept stable so
// that runs are reproducible.
type Solution struct {
	Routes []Route `json:"routes"`
}

// Clone deep-copies s.
func (s Solution) Clone() Solution {
	out := Solution{Routes: make([]Route, len(s.Routes))}
	for i, r := range s.Routes {
		out.Routes[i] = r.Clone()
	}
	return out
}

// Customers lists the non-depot ids in route order.
func (s Solution) Customers() []int {
	out := make([]int, 0, s.CustomerCount())
	for _, r := range s.Routes {
		for _, c := range r {
			if c != Depot {
				out = append(out, c)
			}
		}
	}
	return out
}

// CustomerCount is the number of routable (non-depot) entries in s.
func (s Solution) CustomerCount() int {
	n := 0
	for _, r := range s.Routes {
		for _, c := range r {
			if c != Depot {
				n++
			}
		}
	}
	return n
}

// Equal reports whether s and o hold the same routes in the same order.
func (s Solution) Equal(o Solution) bool {
	if len(s.Routes) != len(o.Routes) {
		return false
	}
	for i := range s.Routes {
		if len(s.Routes[i]) != len(o.Routes[i]) {
			return false
		}
		for j := range s.Routes[i] {
			if s.Routes[i][j] != o.Routes[i][j] {
				return false
			}
		}
	}
	return true
}

// Normalize drops routes that serve nobody (length <= 2). The input is not
// modified.
func Normalize(s Solution) Solution {
	out := Solution{Routes: make([]Route, 0, len(s.Routes))}
	for _, r := range s.Routes {
		if len(r) > 2 {
			out.Routes = append(out.Routes, r.Clone())
		}
	}
	return out
}

// RouteCost sums the directed edge costs along r.
func (in *Instance) RouteCost(r Route) (float64, error) {
	total := 0.0
	for i := 0; i+1 < len(r); i++ {
		c, err := in.Cost(r[i], r[i+1])
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// RouteLoad sums the demand of the non-depot members of r.
func (in *Instance) RouteLoad(r Route) (float64, error) {
	load := 0.0
	for _, c := range r {
		if c == Depot {
			continue
		}
		d, err := in.Demand(c)
		if err != nil {
			return 0, err
		}
		load += d
	}
	return load, nil
}

// SolutionCost is the search objective: travel cost plus the penalty for
// capacity overflow on each route.
func (in *Instance) SolutionCost(s Solution) (float64, error) {
	total := 0.0
	for _, r := range s.Routes {
		c, err := in.RouteCost(r)
		if err != nil {
			return 0, err
		}
		load, err := in.RouteLoad(r)
		if err != nil {
			return 0, err
		}
		total += c
		if over := load - in.capacity; over > 0 {
			total += over * in.penalty
		}
	}
	return total, nil
}

// Feasible reports whether every route respects the capacity.
func (in *Instance) Feasible(s Solution) (bool, error) {
	for _, r := range s.Routes {
		load, err := in.RouteLoad(r)
		if err != nil {
			return false, err
		}
		if load > in.capacity {
			return false, nil
		}
	}
	return true, nil
}

// Validate checks depot framing and that every customer is served exactly
// once.
func (in *Instance) Validate(s Solution) error {
	seen := make(map[int]bool, len(in.ids))
	for ri, r := range s.Routes {
		if len(r) <= 2 {
			return fmt.Errorf("%w: route %d serves no customer", ErrInvalidSolution, ri)
		}
		if r[0] != Depot || r[len(r)-1] != Depot {
			return fmt.Errorf("%w: route %d is not framed by the depot", ErrInvalidSolution, ri)
		}
		for _, c := range r[1 : len(r)-1] {
			if c == Depot {
				return fmt.Errorf("%w: route %d visits the depot mid-route", ErrInvalidSolution, ri)
			}
			if !in.Has(c) {
				return fmt.Errorf("%w: route %d: %w: %d", ErrInvalidSolution, ri, ErrUnknownCustomer, c)
			}
			if seen[c] {
				return fmt.Errorf("%w: customer %d served twice", ErrInvalidSolution, c)
			}
			seen[c] = true
		}
	}
	for _, id := range in.ids {
		if !seen[id] {
			return fmt.Errorf("%w: customer %d not served", ErrInvalidSolution, id)
		}
	}
	return nil
}
