// Package opt implements the route improvement engine: problem instances,
// solutions and their cost, destroy/repair and neighborhood operators,
// acceptance policies and the search drivers (ALNS, LNS, VNS, SA).
//
// Every search run owns its SearchState and its random source; an Instance
// is read-only and may be shared by concurrent runs.
package opt

import (
	"fmt"
	"math"
	"sort"
)

// Depot is the customer id every route starts and ends at.
const Depot = 0

// DefaultPenaltyWeight multiplies capacity overflow in SolutionCost.
const DefaultPenaltyWeight = 1000.0

// Customer is a node to be served. The depot has ID 0 and zero demand.
type Customer struct {
	ID     int     `json:"id" yaml:"id"`
	Demand float64 `json:"demand" yaml:"demand"`
}

// Edge is a directed pair of customer ids.
type Edge struct {
	From int
	To   int
}

// Instance describes customers, their demands, the vehicle capacity and the
// directed travel cost between customers. It is immutable once built.
type Instance struct {
	name     string
	ids      []int
	demand   map[int]float64
	capacity float64
	penalty  float64
	cost     map[Edge]float64
}

// InstanceOption customizes NewInstance.
type InstanceOption func(*Instance)

// WithName labels the instance for logs and reports.
func WithName(name string) InstanceOption {
	return func(in *Instance) { in.name = name }
}

// WithPenaltyWeight overrides DefaultPenaltyWeight.
func WithPenaltyWeight(w float64) InstanceOption {
	return func(in *Instance) { in.penalty = w }
}

// NewInstance validates and copies its inputs. The depot is added with zero
// demand when absent from customers.
func NewInstance(customers []Customer, capacity float64, costs map[Edge]float64, opts ...InstanceOption) (*Instance, error) {
	in := &Instance{
		demand:   make(map[int]float64, len(customers)+1),
		capacity: capacity,
		penalty:  DefaultPenaltyWeight,
		cost:     make(map[Edge]float64, len(costs)),
	}
	for _, o := range opts {
		o(in)
	}
	if !(capacity > 0) || math.IsInf(capacity, 0) {
		return nil, fmt.Errorf("%w: capacity must be positive, got %v", ErrInvalidInstance, capacity)
	}
	if in.penalty < 0 || math.IsNaN(in.penalty) {
		return nil, fmt.Errorf("%w: penalty weight must be >= 0, got %v", ErrInvalidInstance, in.penalty)
	}
	for _, c := range customers {
		if c.ID < 0 {
			return nil, fmt.Errorf("%w: negative customer id %d", ErrInvalidInstance, c.ID)
		}
		if _, dup := in.demand[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate customer id %d", ErrInvalidInstance, c.ID)
		}
		if c.Demand < 0 || math.IsNaN(c.Demand) {
			return nil, fmt.Errorf("%w: customer %d has negative demand", ErrInvalidInstance, c.ID)
		}
		if c.ID == Depot && c.Demand != 0 {
			return nil, fmt.Errorf("%w: depot demand must be 0", ErrInvalidInstance)
		}
		in.demand[c.ID] = c.Demand
		if c.ID != Depot {
			in.ids = append(in.ids, c.ID)
		}
	}
	in.demand[Depot] = 0
	sort.Ints(in.ids)
	for e, v := range costs {
		if _, ok := in.demand[e.From]; !ok {
			return nil, fmt.Errorf("%w: edge (%d,%d) references unknown customer %d", ErrInvalidInstance, e.From, e.To, e.From)
		}
		if _, ok := in.demand[e.To]; !ok {
			return nil, fmt.Errorf("%w: edge (%d,%d) references unknown customer %d", ErrInvalidInstance, e.From, e.To, e.To)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: edge (%d,%d) has invalid cost %v", ErrInvalidInstance, e.From, e.To, v)
		}
		in.cost[e] = v
	}
	return in, nil
}

// Name returns the label given with WithName.
func (in *Instance) Name() string { return in.name }

// Capacity is the per-vehicle load limit.
func (in *Instance) Capacity() float64 { return in.capacity }

// PenaltyWeight is the cost charged per unit of capacity overflow.
func (in *Instance) PenaltyWeight() float64 { return in.penalty }

// Customers returns the non-depot customer ids in ascending order.
func (in *Instance) Customers() []int { return append([]int(nil), in.ids...) }

// Len is the number of non-depot customers.
func (in *Instance) Len() int { return len(in.ids) }

// Has reports whether id belongs to the instance (the depot included).
func (in *Instance) Has(id int) bool {
	_, ok := in.demand[id]
	return ok
}

// Demand returns the demand of id.
func (in *Instance) Demand(id int) (float64, error) {
	d, ok := in.demand[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCustomer, id)
	}
	return d, nil
}

// Cost returns the directed travel cost from -> to.
func (in *Instance) Cost(from, to int) (float64, error) {
	c, ok := in.cost[Edge{From: from, To: to}]
	if !ok {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrUndefinedEdge, from, to)
	}
	return c, nil
}

// Edges returns a copy of the cost table.
func (in *Instance) Edges() map[Edge]float64 {
	out := make(map[Edge]float64, len(in.cost))
	for e, v := range in.cost {
		out[e] = v
	}
	return out
}

// CheckServiceable fails when any single customer exceeds the capacity,
// since no route can ever carry it.
func (in *Instance) CheckServiceable() error {
	for _, id := range in.ids {
		if d := in.demand[id]; d > in.capacity {
			return fmt.Errorf("%w: customer %d demand %v exceeds capacity %v", ErrInfeasibleInstance, id, d, in.capacity)
		}
	}
	return nil
}
