package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vrpsearch/internal/instances"
	"vrpsearch/internal/opt"
)

// solveOutput is what --json prints.
type solveOutput struct {
	Instance  string             `json:"instance"`
	Customers int                `json:"customers"`
	Config    opt.Config         `json:"config"`
	Result    opt.Result         `json:"result"`
	Starts    []opt.StartSummary `json:"starts,omitempty"`
	Summary   *multiStartSummary `json:"summary,omitempty"`
}

type multiStartSummary struct {
	MeanBestCost   float64 `json:"meanBestCost"`
	StdDevBestCost float64 `json:"stdDevBestCost"`
}

func runSolve(cmd *cobra.Command, o solveOptions) error {
	if o.starts < 1 {
		return fmt.Errorf("--starts must be >= 1")
	}
	def, inst, err := instances.Resolve(instanceSource(o))
	if err != nil {
		return err
	}
	if err := inst.CheckServiceable(); err != nil {
		return err
	}
	cfg, err := solverConfig(cmd, o)
	if err != nil {
		return err
	}
	cfg = def.Apply(cfg).WithDefaults()

	log := logrus.WithField("instance", inst.Name())
	ctx := cmd.Context()
	out := solveOutput{Instance: inst.Name(), Customers: inst.Len(), Config: cfg}
	var searchErr error
	if o.starts == 1 {
		s, err := opt.NewSearcher(inst, cfg, opt.WithLogger(log))
		if err != nil {
			return err
		}
		out.Result, searchErr = s.Run(ctx)
	} else {
		var ms opt.MultiStartResult
		ms, searchErr = opt.MultiStart(ctx, inst, cfg, o.starts, opt.WithLogger(log))
		out.Result = ms.Best
		out.Starts = ms.Starts
		if len(ms.Starts) > 0 {
			out.Summary = &multiStartSummary{MeanBestCost: ms.MeanBestCost, StdDevBestCost: ms.StdDevBestCost}
		}
	}
	// a failed search still reports the best solution it reached
	if out.Result.Routes == nil {
		return searchErr
	}

	w := cmd.OutOrStdout()
	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		return searchErr
	}
	printReport(w, out)
	return searchErr
}

func printReport(w io.Writer, out solveOutput) {
	res := out.Result
	fmt.Fprintf(w, "instance:   %s (%d customers)\n", out.Instance, out.Customers)
	fmt.Fprintf(w, "algorithm:  %s, seed %d, %d iterations\n", res.Algorithm, res.Seed, res.Metrics.Iterations)
	for i, r := range res.Routes {
		stops := make([]string, len(r))
		for j, c := range r {
			stops[j] = fmt.Sprint(c)
		}
		fmt.Fprintf(w, "route %d:    %s\n", i+1, strings.Join(stops, " -> "))
	}
	fmt.Fprintf(w, "best cost:  %g\n", res.BestCost)
	fmt.Fprintf(w, "feasible:   %t\n", res.Feasible)
	if res.Stopped {
		fmt.Fprintln(w, "stopped:    interrupted, best solution so far")
	}
	if out.Summary != nil {
		fmt.Fprintf(w, "starts:     %d, mean %g, stddev %g\n", len(out.Starts), out.Summary.MeanBestCost, out.Summary.StdDevBestCost)
	}
}
