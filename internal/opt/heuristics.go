package opt

import (
	"fmt"
	"math/rand"
)

// MoveFunc perturbs a complete solution. It must not modify s.
type MoveFunc func(s Solution, rng *rand.Rand) Solution

// Neighborhood move names.
const (
	MoveSwap       = "swap"
	MoveSwapRoutes = "swap-routes"
	MoveRelocate   = "relocate"
	MoveTwoOpt     = "2opt"
)

// DefaultNeighborhoods returns the VNS order, most disruptive first.
func DefaultNeighborhoods() []string { return []string{MoveSwap, MoveRelocate, MoveTwoOpt} }

// LookupMove resolves a neighborhood move by name.
func LookupMove(name string) (MoveFunc, error) {
	switch name {
	case MoveSwap:
		return Swap, nil
	case MoveSwapRoutes:
		return SwapRoutes, nil
	case MoveRelocate:
		return Relocate, nil
	case MoveTwoOpt, "two-opt":
		return TwoOpt, nil
	}
	return nil, fmt.Errorf("%w: move %q", ErrUnknownOperator, name)
}

type slot struct{ route, pos int }

func customerSlots(s Solution) []slot {
	var out []slot
	for ri, r := range s.Routes {
		for i, c := range r {
			if c != Depot {
				out = append(out, slot{ri, i})
			}
		}
	}
	return out
}

// Swap exchanges two distinct customers, in the same route or across routes.
// Loads per route may change; capacity is left to the objective.
func Swap(s Solution, rng *rand.Rand) Solution {
	out := s.Clone()
	slots := customerSlots(out)
	if len(slots) < 2 {
		return out
	}
	a := rng.Intn(len(slots))
	b := rng.Intn(len(slots) - 1)
	if b >= a {
		b++
	}
	sa, sb := slots[a], slots[b]
	out.Routes[sa.route][sa.pos], out.Routes[sb.route][sb.pos] = out.Routes[sb.route][sb.pos], out.Routes[sa.route][sa.pos]
	return out
}

// SwapRoutes exchanges one customer of a route with one customer of another
// route. With fewer than two non-empty routes it behaves like Swap.
func SwapRoutes(s Solution, rng *rand.Rand) Solution {
	var routes []int
	for ri, r := range s.Routes {
		if len(r) > 2 {
			routes = append(routes, ri)
		}
	}
	if len(routes) < 2 {
		return Swap(s, rng)
	}
	out := s.Clone()
	a := rng.Intn(len(routes))
	b := rng.Intn(len(routes) - 1)
	if b >= a {
		b++
	}
	ra, rb := out.Routes[routes[a]], out.Routes[routes[b]]
	i := 1 + rng.Intn(len(ra)-2)
	j := 1 + rng.Intn(len(rb)-2)
	ra[i], rb[j] = rb[j], ra[i]
	return out
}

// Relocate moves one random customer to a random position of a random
// route. A route emptied by the removal is dropped; when none remain the
// customer gets a new route.
func Relocate(s Solution, rng *rand.Rand) Solution {
	out := s.Clone()
	slots := customerSlots(out)
	if len(slots) == 0 {
		return out
	}
	from := slots[rng.Intn(len(slots))]
	r := out.Routes[from.route]
	c := r[from.pos]
	r = append(r[:from.pos], r[from.pos+1:]...)
	if len(r) <= 2 {
		out.Routes = append(out.Routes[:from.route], out.Routes[from.route+1:]...)
	} else {
		out.Routes[from.route] = r
	}
	if len(out.Routes) == 0 {
		out.Routes = append(out.Routes, Route{Depot, c, Depot})
		return out
	}
	to := rng.Intn(len(out.Routes))
	dst := out.Routes[to]
	pos := 1
	if len(dst) > 2 {
		pos = 1 + rng.Intn(len(dst)-1)
	}
	out.Routes[to] = insertInto(make(Route, 0, len(dst)+1), dst, pos, c)
	return out
}

// TwoOpt reverses a random internal segment of one random route. Routes of
// four positions or fewer are returned unchanged.
func TwoOpt(s Solution, rng *rand.Rand) Solution {
	out := s.Clone()
	if len(out.Routes) == 0 {
		return out
	}
	ri := rng.Intn(len(out.Routes))
	r := out.Routes[ri]
	if len(r) <= 4 {
		return out
	}
	internal := len(r) - 2
	i := 1 + rng.Intn(internal)
	j := 1 + rng.Intn(internal-1)
	if j >= i {
		j++
	}
	if i > j {
		i, j = j, i
	}
	out.Routes[ri] = ReverseSegment(r, i, j)
	return out
}

// ReverseSegment returns a copy of r with positions i..j (inclusive)
// reversed. Indices must satisfy 1 <= i < j <= len(r)-2, otherwise r is
// returned unchanged.
func ReverseSegment(r Route, i, j int) Route {
	out := r.Clone()
	if i < 1 || j > len(r)-2 || i >= j {
		return out
	}
	for lo, hi := i, j; lo < hi; lo, hi = lo+1, hi-1 {
		out[lo], out[hi] = out[hi], out[lo]
	}
	return out
}
