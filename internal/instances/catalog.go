package instances

import (
	"fmt"
	"sort"
)

func coord(v float64) *float64 { return &v }

var catalog = map[string]Definition{
	"classic4": {
		Name:        "classic4",
		Description: "4-node symmetric CVRP, capacity 3",
		Capacity:    3,
		Symmetric:   true,
		Nodes: []Node{
			{ID: 0},
			{ID: 1, Demand: 1},
			{ID: 2, Demand: 1},
			{ID: 3, Demand: 2},
		},
		Arcs: []Arc{
			{From: 0, To: 1, Cost: 10}, {From: 0, To: 2, Cost: 15}, {From: 0, To: 3, Cost: 20},
			{From: 1, To: 2, Cost: 35}, {From: 1, To: 3, Cost: 25}, {From: 2, To: 3, Cost: 30},
		},
	},
	"gvrp5": {
		Name:        "gvrp5",
		Description: "5-node green VRP on the plane, fuel factor 1.5, 2 vehicles",
		Capacity:    3,
		CostFactor:  1.5,
		Vehicles:    2,
		Nodes: []Node{
			{ID: 0, X: coord(50), Y: coord(50)},
			{ID: 1, Demand: 1, X: coord(20), Y: coord(30)},
			{ID: 2, Demand: 1, X: coord(40), Y: coord(70)},
			{ID: 3, Demand: 2, X: coord(60), Y: coord(20)},
			{ID: 4, Demand: 1, X: coord(80), Y: coord(80)},
		},
	},
}

// Builtin returns a copy of a catalog entry.
func Builtin(name string) (Definition, error) {
	d, ok := catalog[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownInstance, name)
	}
	d.Nodes = append([]Node(nil), d.Nodes...)
	d.Arcs = append([]Arc(nil), d.Arcs...)
	return d, nil
}

// Names lists the catalog in sorted order.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Summary describes a catalog entry.
type Summary struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Customers   int     `json:"customers"`
	Capacity    float64 `json:"capacity"`
	Vehicles    int     `json:"vehicles,omitempty"`
}

// Catalog summarizes every built-in instance.
func Catalog() []Summary {
	var out []Summary
	for _, n := range Names() {
		d := catalog[n]
		customers := 0
		for _, node := range d.Nodes {
			if node.ID != 0 {
				customers++
			}
		}
		out = append(out, Summary{Name: d.Name, Description: d.Description, Customers: customers, Capacity: d.Capacity, Vehicles: d.Vehicles})
	}
	return out
}
