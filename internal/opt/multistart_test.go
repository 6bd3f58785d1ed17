package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiStart(t *testing.T) {
	in := grid(t, 9, 3)
	cfg := Config{Algorithm: AlgorithmLNS, Seed: 21, MaxIterations: 30}

	res, err := MultiStart(context.Background(), in, cfg, 4)
	require.NoError(t, err)
	require.Len(t, res.Starts, 4)
	assert.Equal(t, int64(21), res.Starts[0].Seed)

	seeds := map[int64]bool{}
	lowest := res.Starts[0].BestCost
	for _, s := range res.Starts {
		seeds[s.Seed] = true
		if s.BestCost < lowest {
			lowest = s.BestCost
		}
		assert.Equal(t, 30, s.Iterations)
	}
	assert.Len(t, seeds, 4)
	assert.Equal(t, lowest, res.Best.BestCost)
	assert.GreaterOrEqual(t, res.MeanBestCost, lowest)
	assert.GreaterOrEqual(t, res.StdDevBestCost, 0.0)

	single := run(t, in, Config{Algorithm: AlgorithmLNS, Seed: DeriveSeed(21, 2), MaxIterations: 30})
	assert.Equal(t, single.BestCost, res.Starts[2].BestCost)
}

func TestMultiStart_SingleStart(t *testing.T) {
	res, err := MultiStart(context.Background(), classic4(t), Config{MaxIterations: 10}, 1)
	require.NoError(t, err)
	assert.Equal(t, res.Best.BestCost, res.MeanBestCost)
	assert.Zero(t, res.StdDevBestCost)
}

func TestMultiStart_Rejects(t *testing.T) {
	_, err := MultiStart(context.Background(), classic4(t), Config{}, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = MultiStart(context.Background(), classic4(t), Config{Algorithm: "tabu"}, 2)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMultiStart_StopsLaunchingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := MultiStart(ctx, classic4(t), Config{}, 5)
	require.NoError(t, err)
	require.Len(t, res.Starts, 1)
	assert.True(t, res.Starts[0].Stopped)
}
