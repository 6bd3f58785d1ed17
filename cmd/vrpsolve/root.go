package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vrpsearch/internal/buildinfo"
	"vrpsearch/internal/config"
	"vrpsearch/internal/instances"
	"vrpsearch/internal/opt"
)

// solveOptions holds the flags of the solve command.
type solveOptions struct {
	instanceFile string  // yaml, json or csv instance file
	builtin      string  // catalog instance name
	capacity     float64 // csv only
	costFactor   float64 // csv only
	vehicles     int     // csv only, or even-split override
	algorithm    string
	iterations   int
	seed         int64
	starts       int
	configFile   string // single solver config document
	profilesFile string
	profile      string
	asJSON       bool
}

// newRootCmd is the base command; output goes to out.
func newRootCmd(out io.Writer) *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "vrpsolve",
		Short:        "Destroy/repair and local-search heuristics for capacitated vehicle routing",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q", logLevel)
			}
			logrus.SetLevel(level)
			logrus.SetOutput(os.Stderr)
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	root.AddCommand(newSolveCmd(), newInstancesCmd(), newVersionCmd())
	return root
}

func newSolveCmd() *cobra.Command {
	var o solveOptions
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run a search and print the best routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.instanceFile, "instance", "", "Instance file (.yaml, .yml, .json or .csv)")
	f.StringVar(&o.builtin, "builtin", "", "Built-in instance name (see `vrpsolve instances`)")
	f.Float64Var(&o.capacity, "capacity", 0, "Vehicle capacity for csv instances")
	f.Float64Var(&o.costFactor, "cost-factor", 0, "Distance multiplier for csv instances")
	f.IntVar(&o.vehicles, "vehicles", 0, "Vehicles for csv instances and even-split construction")
	f.StringVar(&o.algorithm, "algorithm", "", "Search loop: alns, lns, vns or sa")
	f.IntVar(&o.iterations, "iterations", 0, "Iteration budget")
	f.Int64Var(&o.seed, "seed", 0, "Random seed")
	f.IntVar(&o.starts, "starts", 1, "Independent starts with derived seeds")
	f.StringVar(&o.configFile, "config", "", "Solver config YAML document")
	f.StringVar(&o.profilesFile, "profiles", "", "Solver profiles YAML file")
	f.StringVar(&o.profile, "profile", "", "Profile name within --profiles")
	f.BoolVar(&o.asJSON, "json", false, "Print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("instance", "builtin")
	cmd.MarkFlagsOneRequired("instance", "builtin")
	cmd.MarkFlagsRequiredTogether("profiles", "profile")
	return cmd
}

func newInstancesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List the built-in instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := instances.Catalog()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCUSTOMERS\tCAPACITY\tVEHICLES\tDESCRIPTION")
			for _, s := range items {
				fmt.Fprintf(tw, "%s\t%d\t%g\t%d\t%s\n", s.Name, s.Customers, s.Capacity, s.Vehicles, s.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := buildinfo.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "vrpsolve %s", info["version"])
			if info["commit"] != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", info["commit"])
			}
			if info["builtAt"] != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " built %s", info["builtAt"])
			}
			if info["go"] != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ", %s", info["go"])
			}
			fmt.Fprintln(cmd.OutOrStdout())
		},
	}
}

// solverConfig layers, lowest first: profile, --config document, flags.
func solverConfig(cmd *cobra.Command, o solveOptions) (opt.Config, error) {
	var cfg opt.Config
	if o.profilesFile != "" {
		profiles, err := config.LoadProfiles(o.profilesFile)
		if err != nil {
			return opt.Config{}, err
		}
		p, ok := profiles[o.profile]
		if !ok {
			return opt.Config{}, fmt.Errorf("profile %q not found in %s", o.profile, o.profilesFile)
		}
		cfg = p
	}
	if o.configFile != "" {
		fh, err := os.Open(o.configFile)
		if err != nil {
			return opt.Config{}, err
		}
		defer fh.Close()
		doc, err := config.DecodeConfig(fh)
		if err != nil {
			return opt.Config{}, err
		}
		cfg = config.Overlay(cfg, doc)
	}
	f := cmd.Flags()
	if f.Changed("algorithm") {
		cfg.Algorithm = opt.Algorithm(o.algorithm)
	}
	if f.Changed("iterations") {
		cfg.MaxIterations = o.iterations
	}
	if f.Changed("seed") {
		cfg.Seed = o.seed
	}
	if f.Changed("vehicles") {
		cfg.Vehicles = o.vehicles
	}
	return cfg, nil
}

func instanceSource(o solveOptions) instances.Source {
	if o.builtin != "" {
		return instances.BuiltinSource(o.builtin)
	}
	return instances.FileSource{Path: o.instanceFile, CSV: instances.CSVOptions{
		Capacity:   o.capacity,
		CostFactor: o.costFactor,
		Vehicles:   o.vehicles,
	}}
}
