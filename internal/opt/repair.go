package opt

import (
	"fmt"
	"math"
)

// RepairFunc reinserts pending customers into s. It must not modify s.
type RepairFunc func(in *Instance, s Solution, pending []int) (Solution, error)

// Repair operator names.
const (
	RepairGreedy  = "greedy"
	RepairRegret2 = "regret2"
)

// LookupRepair resolves a repair operator by name.
func LookupRepair(name string) (RepairFunc, error) {
	switch name {
	case RepairGreedy:
		return GreedyInsertion, nil
	case RepairRegret2:
		return RegretInsertion, nil
	}
	return nil, fmt.Errorf("%w: repair %q", ErrUnknownOperator, name)
}

// GreedyInsertion inserts pending customers one at a time, in the given
// order, at the capacity-feasible position whose resulting route cost is
// lowest. Routes are scanned first to last and positions left to right; the
// first minimum wins. A customer with no feasible position opens a new route.
func GreedyInsertion(in *Instance, s Solution, pending []int) (Solution, error) {
	out := s.Clone()
	var scratch Route
	for _, c := range pending {
		d, err := in.Demand(c)
		if err != nil {
			return Solution{}, err
		}
		bestRoute, bestPos := -1, -1
		bestCost := math.Inf(1)
		for ri, r := range out.Routes {
			load, err := in.RouteLoad(r)
			if err != nil {
				return Solution{}, err
			}
			if load+d > in.capacity {
				continue
			}
			for pos := 1; pos < len(r); pos++ {
				scratch = insertInto(scratch[:0], r, pos, c)
				cost, err := in.RouteCost(scratch)
				if err != nil {
					return Solution{}, err
				}
				if cost < bestCost {
					bestCost, bestRoute, bestPos = cost, ri, pos
				}
			}
		}
		if bestRoute < 0 {
			out.Routes = append(out.Routes, Route{Depot, c, Depot})
			continue
		}
		out.Routes[bestRoute] = insertInto(nil, out.Routes[bestRoute], bestPos, c)
	}
	return out, nil
}

// RegretInsertion repeatedly commits the pending customer whose best
// feasible insertion would lose the most if it had to settle for its second
// best. Insertion cost is the increase in route cost. Customers with no
// feasible position left get their own route once no other customer can be
// placed.
func RegretInsertion(in *Instance, s Solution, pending []int) (Solution, error) {
	out := s.Clone()
	todo := append([]int(nil), pending...)
	var scratch Route
	for len(todo) > 0 {
		pick, pickRoute, pickPos := -1, -1, -1
		pickRegret := math.Inf(-1)
		for ti, c := range todo {
			d, err := in.Demand(c)
			if err != nil {
				return Solution{}, err
			}
			best1, best2 := math.Inf(1), math.Inf(1)
			br, bp := -1, -1
			for ri, r := range out.Routes {
				load, err := in.RouteLoad(r)
				if err != nil {
					return Solution{}, err
				}
				if load+d > in.capacity {
					continue
				}
				base, err := in.RouteCost(r)
				if err != nil {
					return Solution{}, err
				}
				for pos := 1; pos < len(r); pos++ {
					scratch = insertInto(scratch[:0], r, pos, c)
					cost, err := in.RouteCost(scratch)
					if err != nil {
						return Solution{}, err
					}
					delta := cost - base
					if delta < best1 {
						best2 = best1
						best1, br, bp = delta, ri, pos
					} else if delta < best2 {
						best2 = delta
					}
				}
			}
			if br < 0 {
				continue
			}
			regret := best2 - best1
			if regret > pickRegret {
				pick, pickRoute, pickPos, pickRegret = ti, br, bp, regret
			}
		}
		if pick < 0 {
			c := todo[0]
			out.Routes = append(out.Routes, Route{Depot, c, Depot})
			todo = todo[1:]
			continue
		}
		out.Routes[pickRoute] = insertInto(nil, out.Routes[pickRoute], pickPos, todo[pick])
		todo = append(todo[:pick], todo[pick+1:]...)
	}
	return out, nil
}

// insertInto writes r with c inserted before index pos into dst.
func insertInto(dst, r Route, pos int, c int) Route {
	dst = append(dst, r[:pos]...)
	dst = append(dst, c)
	return append(dst, r[pos:]...)
}
