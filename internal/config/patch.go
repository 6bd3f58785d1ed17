package config

import "vrpsearch/internal/opt"

// Patch is a partial solver config. A nil field is absent and keeps the
// value underneath, so an explicit zero such as `seed: 0` still applies.
// Keys match opt.Config.
type Patch struct {
	Algorithm       *opt.Algorithm `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	MaxIterations   *int           `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
	Seed            *int64         `json:"seed,omitempty" yaml:"seed,omitempty"`
	RemovalCount    *int           `json:"removalCount,omitempty" yaml:"removalCount,omitempty"`
	RemovalFraction *float64       `json:"removalFraction,omitempty" yaml:"removalFraction,omitempty"`
	DestroyOps      []string       `json:"destroyOps,omitempty" yaml:"destroyOps,omitempty"`
	RepairOps       []string       `json:"repairOps,omitempty" yaml:"repairOps,omitempty"`
	DestroyWeights  []float64      `json:"destroyWeights,omitempty" yaml:"destroyWeights,omitempty"`
	RepairWeights   []float64      `json:"repairWeights,omitempty" yaml:"repairWeights,omitempty"`

	Acceptance  *string  `json:"acceptance,omitempty" yaml:"acceptance,omitempty"`
	Cooling     *string  `json:"cooling,omitempty" yaml:"cooling,omitempty"`
	InitialTemp *float64 `json:"initialTemp,omitempty" yaml:"initialTemp,omitempty"`
	CoolingRate *float64 `json:"coolingRate,omitempty" yaml:"coolingRate,omitempty"`
	MinTemp     *float64 `json:"minTemp,omitempty" yaml:"minTemp,omitempty"`

	Neighborhoods    []string `json:"neighborhoods,omitempty" yaml:"neighborhoods,omitempty"`
	LocalSearchLimit *int     `json:"localSearchLimit,omitempty" yaml:"localSearchLimit,omitempty"`

	Construction *string `json:"construction,omitempty" yaml:"construction,omitempty"`
	Vehicles     *int    `json:"vehicles,omitempty" yaml:"vehicles,omitempty"`

	LogEvery      *int `json:"logEvery,omitempty" yaml:"logEvery,omitempty"`
	SnapshotEvery *int `json:"snapshotEvery,omitempty" yaml:"snapshotEvery,omitempty"`
}

// Overlay returns base with every field present in p applied on top.
// RemovalCount and RemovalFraction are one setting: giving either replaces
// both. Operator lists replace their weights along with them.
func Overlay(base opt.Config, p Patch) opt.Config {
	out := base
	set(&out.Algorithm, p.Algorithm)
	set(&out.MaxIterations, p.MaxIterations)
	set(&out.Seed, p.Seed)
	if p.RemovalCount != nil || p.RemovalFraction != nil {
		out.RemovalCount, out.RemovalFraction = 0, 0
		set(&out.RemovalCount, p.RemovalCount)
		set(&out.RemovalFraction, p.RemovalFraction)
	}
	if p.DestroyOps != nil {
		out.DestroyOps, out.DestroyWeights = p.DestroyOps, p.DestroyWeights
	} else if p.DestroyWeights != nil {
		out.DestroyWeights = p.DestroyWeights
	}
	if p.RepairOps != nil {
		out.RepairOps, out.RepairWeights = p.RepairOps, p.RepairWeights
	} else if p.RepairWeights != nil {
		out.RepairWeights = p.RepairWeights
	}
	set(&out.Acceptance, p.Acceptance)
	set(&out.Cooling, p.Cooling)
	set(&out.InitialTemp, p.InitialTemp)
	set(&out.CoolingRate, p.CoolingRate)
	set(&out.MinTemp, p.MinTemp)
	if p.Neighborhoods != nil {
		out.Neighborhoods = p.Neighborhoods
	}
	set(&out.LocalSearchLimit, p.LocalSearchLimit)
	set(&out.Construction, p.Construction)
	set(&out.Vehicles, p.Vehicles)
	set(&out.LogEvery, p.LogEvery)
	set(&out.SnapshotEvery, p.SnapshotEvery)
	return out
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
