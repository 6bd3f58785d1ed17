// Package instances turns instance definitions from files, request bodies
// and the built-in catalog into opt.Instance values.
package instances

import (
	"errors"
	"fmt"
	"math"

	"vrpsearch/internal/opt"
)

var (
	ErrUnknownInstance   = errors.New("instances: unknown instance")
	ErrInvalidDefinition = errors.New("instances: invalid definition")
	ErrUnsupportedFormat = errors.New("instances: unsupported format")
)

// Node is a customer (or the depot, id 0) with optional planar coordinates.
type Node struct {
	ID     int      `json:"id" yaml:"id"`
	Demand float64  `json:"demand" yaml:"demand"`
	X      *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y      *float64 `json:"y,omitempty" yaml:"y,omitempty"`
}

// Arc is an explicit travel cost.
type Arc struct {
	From int     `json:"from" yaml:"from"`
	To   int     `json:"to" yaml:"to"`
	Cost float64 `json:"cost" yaml:"cost"`
}

// Definition is the serializable form of an instance. Costs come either
// from Arcs or, when no arcs are given, from Euclidean distances between
// node coordinates scaled by CostFactor.
type Definition struct {
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Capacity      float64  `json:"capacity" yaml:"capacity"`
	PenaltyWeight *float64 `json:"penaltyWeight,omitempty" yaml:"penaltyWeight,omitempty"`
	CostFactor    float64  `json:"costFactor,omitempty" yaml:"costFactor,omitempty"`
	Vehicles      int      `json:"vehicles,omitempty" yaml:"vehicles,omitempty"`
	Symmetric     bool     `json:"symmetric,omitempty" yaml:"symmetric,omitempty"`
	Nodes         []Node   `json:"nodes" yaml:"nodes"`
	Arcs          []Arc    `json:"arcs,omitempty" yaml:"arcs,omitempty"`
}

// Build validates d and constructs the instance.
func (d Definition) Build() (*opt.Instance, error) {
	if len(d.Nodes) == 0 {
		return nil, fmt.Errorf("%w: %q has no nodes", ErrInvalidDefinition, d.Name)
	}
	if d.CostFactor < 0 || math.IsNaN(d.CostFactor) {
		return nil, fmt.Errorf("%w: costFactor must be >= 0", ErrInvalidDefinition)
	}
	var costs map[opt.Edge]float64
	var err error
	if len(d.Arcs) > 0 {
		costs = d.arcCosts()
	} else {
		costs, err = d.euclideanCosts()
		if err != nil {
			return nil, err
		}
	}
	customers := make([]opt.Customer, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		customers = append(customers, opt.Customer{ID: n.ID, Demand: n.Demand})
	}
	opts := []opt.InstanceOption{opt.WithName(d.Name)}
	if d.PenaltyWeight != nil {
		opts = append(opts, opt.WithPenaltyWeight(*d.PenaltyWeight))
	}
	in, err := opt.NewInstance(customers, d.Capacity, costs, opts...)
	if err != nil {
		return nil, fmt.Errorf("build %q: %w", d.Name, err)
	}
	return in, nil
}

// Apply fills run settings the definition carries into cfg. A definition
// with a fleet size starts from an even split unless cfg picks a
// construction.
func (d Definition) Apply(cfg opt.Config) opt.Config {
	if cfg.Vehicles == 0 {
		cfg.Vehicles = d.Vehicles
	}
	if d.Vehicles > 0 && cfg.Construction == "" {
		cfg.Construction = opt.ConstructEvenSplit
	}
	return cfg
}

func (d Definition) arcCosts() map[opt.Edge]float64 {
	costs := make(map[opt.Edge]float64, len(d.Arcs)*2)
	for _, a := range d.Arcs {
		costs[opt.Edge{From: a.From, To: a.To}] = a.Cost
		if d.Symmetric {
			if _, ok := costs[opt.Edge{From: a.To, To: a.From}]; !ok {
				costs[opt.Edge{From: a.To, To: a.From}] = a.Cost
			}
		}
	}
	return costs
}

func (d Definition) euclideanCosts() (map[opt.Edge]float64, error) {
	factor := d.CostFactor
	if factor == 0 {
		factor = 1
	}
	for _, n := range d.Nodes {
		if n.X == nil || n.Y == nil {
			return nil, fmt.Errorf("%w: node %d has no coordinates and no arcs were given", ErrInvalidDefinition, n.ID)
		}
	}
	costs := make(map[opt.Edge]float64, len(d.Nodes)*len(d.Nodes))
	for _, a := range d.Nodes {
		for _, b := range d.Nodes {
			if a.ID == b.ID {
				continue
			}
			costs[opt.Edge{From: a.ID, To: b.ID}] = math.Hypot(*a.X-*b.X, *a.Y-*b.Y) * factor
		}
	}
	return costs, nil
}
