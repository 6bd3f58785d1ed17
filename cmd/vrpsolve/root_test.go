package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpsearch/internal/buildinfo"
	"vrpsearch/internal/instances"
	"vrpsearch/internal/opt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestInstancesCmd(t *testing.T) {
	out, err := execute(t, "instances")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "classic4")
	assert.Contains(t, out, "gvrp5")

	out, err = execute(t, "instances", "--json")
	require.NoError(t, err)
	var items []instances.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Len(t, items, len(instances.Names()))
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vrpsolve "+buildinfo.Version)
}

func TestSolveCmd_BuiltinJSON(t *testing.T) {
	out, err := execute(t, "solve", "--builtin", "classic4", "--algorithm", "lns", "--iterations", "10", "--seed", "7", "--json")
	require.NoError(t, err)

	var got solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "classic4", got.Instance)
	assert.Equal(t, 3, got.Customers)
	assert.Equal(t, opt.AlgorithmLNS, got.Config.Algorithm)
	assert.Equal(t, 10, got.Config.MaxIterations)
	assert.Equal(t, int64(7), got.Result.Seed)
	assert.True(t, got.Result.Feasible)
	assert.LessOrEqual(t, got.Result.BestCost, 100.0)
	assert.NotEmpty(t, got.Result.Routes)
	assert.Nil(t, got.Summary)
}

func TestSolveCmd_TextReport(t *testing.T) {
	out, err := execute(t, "solve", "--builtin", "classic4", "--algorithm", "vns", "--iterations", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "instance:   classic4 (3 customers)")
	assert.Contains(t, out, "route 1:")
	assert.Contains(t, out, "feasible:   true")
}

func TestSolveCmd_MultiStart(t *testing.T) {
	out, err := execute(t, "solve", "--builtin", "gvrp5", "--algorithm", "sa", "--iterations", "20", "--starts", "3", "--json")
	require.NoError(t, err)

	var got solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got.Starts, 3)
	require.NotNil(t, got.Summary)
	for _, s := range got.Starts {
		assert.GreaterOrEqual(t, s.BestCost, got.Result.BestCost)
	}
	// the catalog entry carries the fleet size
	assert.Equal(t, 2, got.Config.Vehicles)
	assert.Equal(t, opt.ConstructEvenSplit, got.Config.Construction)
}

func TestSolveCmd_ConfigLayers(t *testing.T) {
	profiles := writeFile(t, "profiles.yaml", "profiles:\n  quick:\n    algorithm: alns\n    maxIterations: 15\n    seed: 3\n")
	doc := writeFile(t, "solver.yaml", "maxIterations: 12\n")

	out, err := execute(t, "solve", "--builtin", "classic4", "--profiles", profiles, "--profile", "quick", "--config", doc, "--seed", "9", "--json")
	require.NoError(t, err)
	var got solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, opt.AlgorithmALNS, got.Config.Algorithm)
	assert.Equal(t, 12, got.Config.MaxIterations)
	assert.Equal(t, int64(9), got.Config.Seed)

	zero := writeFile(t, "zero.yaml", "seed: 0\n")
	out, err = execute(t, "solve", "--builtin", "classic4", "--profiles", profiles, "--profile", "quick", "--config", zero, "--json")
	require.NoError(t, err)
	got = solveOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Zero(t, got.Config.Seed, "an explicit zero overrides the profile")
	assert.Equal(t, 15, got.Config.MaxIterations)

	_, err = execute(t, "solve", "--builtin", "classic4", "--profiles", profiles, "--profile", "missing")
	assert.ErrorContains(t, err, `profile "missing" not found`)
}

func TestSolveCmd_CSVInstance(t *testing.T) {
	path := writeFile(t, "green.csv", "id,demand,x,y\n0,0,0,0\n1,1,3,4\n2,1,0,4\n3,1,3,0\n")
	out, err := execute(t, "solve", "--instance", path, "--capacity", "2", "--cost-factor", "2", "--iterations", "10", "--json")
	require.NoError(t, err)
	var got solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "green", got.Instance)
	assert.Equal(t, 3, got.Customers)
	assert.True(t, got.Result.Feasible)
}

func TestSolveCmd_FailedSearchStillReports(t *testing.T) {
	// no 1-3 arc: inserting 1 next to 3 fails mid-search
	inst := writeFile(t, "broken.yaml", `name: broken
capacity: 3
symmetric: true
nodes: [{id: 0}, {id: 1, demand: 1}, {id: 2, demand: 1}, {id: 3, demand: 2}]
arcs:
  - {from: 0, to: 1, cost: 10}
  - {from: 0, to: 2, cost: 15}
  - {from: 0, to: 3, cost: 20}
  - {from: 1, to: 2, cost: 35}
  - {from: 2, to: 3, cost: 30}
`)
	doc := writeFile(t, "solver.yaml", "algorithm: lns\nmaxIterations: 200\nremovalCount: 1\nseed: 4\n")

	out, err := execute(t, "solve", "--instance", inst, "--config", doc, "--starts", "3")
	require.ErrorIs(t, err, opt.ErrUndefinedEdge)
	assert.Contains(t, out, "best cost:  100")
	assert.Contains(t, out, "starts:     1")
}

func TestSolveCmd_Errors(t *testing.T) {
	_, err := execute(t, "solve")
	assert.Error(t, err)

	_, err = execute(t, "solve", "--builtin", "classic4", "--instance", "x.yaml")
	assert.Error(t, err)

	_, err = execute(t, "solve", "--builtin", "nope")
	assert.ErrorIs(t, err, instances.ErrUnknownInstance)

	_, err = execute(t, "solve", "--builtin", "classic4", "--algorithm", "tabu")
	assert.ErrorIs(t, err, opt.ErrInvalidConfig)

	_, err = execute(t, "solve", "--builtin", "classic4", "--starts", "0")
	assert.Error(t, err)

	heavy := writeFile(t, "heavy.yaml", "name: heavy\ncapacity: 1\nnodes:\n  - {id: 0, x: 0, y: 0}\n  - {id: 1, demand: 2, x: 1, y: 1}\n")
	_, err = execute(t, "solve", "--instance", heavy)
	assert.ErrorIs(t, err, opt.ErrInfeasibleInstance)

	_, err = execute(t, "--log", "loud", "instances")
	assert.ErrorContains(t, err, "invalid log level")
}
