package opt

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StartSummary describes one start of a multi-start search.
type StartSummary struct {
	Seed       int64   `json:"seed"`
	BestCost   float64 `json:"bestCost"`
	Iterations int     `json:"iterations"`
	Stopped    bool    `json:"stopped"`
}

// MultiStartResult aggregates independent starts; Best is the start with the
// lowest best cost (the earliest one on ties).
type MultiStartResult struct {
	Best           Result         `json:"best"`
	Starts         []StartSummary `json:"starts"`
	MeanBestCost   float64        `json:"meanBestCost"`
	StdDevBestCost float64        `json:"stdDevBestCost"`
}

// MultiStart runs starts independent searches one after another, each with
// its own Searcher and a seed derived from cfg.Seed. It stops launching new
// starts once ctx is done. When a start fails the starts finished so far are
// returned with the error, and the failed start's best still competes for
// Best.
func MultiStart(ctx context.Context, inst *Instance, cfg Config, starts int, opts ...Option) (MultiStartResult, error) {
	if starts < 1 {
		return MultiStartResult{}, fmt.Errorf("%w: starts must be >= 1", ErrInvalidConfig)
	}
	var out MultiStartResult
	costs := make([]float64, 0, starts)
	for i := 0; i < starts; i++ {
		if i > 0 && ctx.Err() != nil {
			break
		}
		c := cfg
		c.Seed = DeriveSeed(cfg.Seed, i)
		s, err := NewSearcher(inst, c, opts...)
		if err != nil {
			return out.summarize(costs), err
		}
		res, runErr := s.Run(ctx)
		if res.Routes != nil {
			out.Starts = append(out.Starts, StartSummary{
				Seed:       c.Seed,
				BestCost:   res.BestCost,
				Iterations: res.Metrics.Iterations,
				Stopped:    res.Stopped,
			})
			costs = append(costs, res.BestCost)
			if len(costs) == 1 || res.BestCost < out.Best.BestCost {
				out.Best = res
			}
		}
		if runErr != nil {
			return out.summarize(costs), fmt.Errorf("start %d (seed %d): %w", i, c.Seed, runErr)
		}
	}
	return out.summarize(costs), nil
}

func (m MultiStartResult) summarize(costs []float64) MultiStartResult {
	switch len(costs) {
	case 0:
	case 1:
		m.MeanBestCost = costs[0]
	default:
		m.MeanBestCost, m.StdDevBestCost = stat.MeanStdDev(costs, nil)
	}
	return m
}
