package metrics

import (
    "testing"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    dto "github.com/prometheus/client_model/go"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
    t.Helper()
    var m dto.Metric
    require.NoError(t, c.Write(&m))
    return m.GetCounter().GetValue()
}

func TestObserveRun(t *testing.T) {
    RegisterDefault()
    RegisterDefault()

    before := counterValue(t, SearchRuns.WithLabelValues("lns", "succeeded"))
    ObserveRun("classic4", "lns", "succeeded", 100, 85, true, 20*time.Millisecond)
    assert.Equal(t, before+1, counterValue(t, SearchRuns.WithLabelValues("lns", "succeeded")))
    assert.GreaterOrEqual(t, counterValue(t, SearchIterations.WithLabelValues("lns")), 100.0)

    var g dto.Metric
    require.NoError(t, SearchBestCost.WithLabelValues("classic4", "lns").Write(&g))
    assert.Equal(t, 85.0, g.GetGauge().GetValue())

    families, err := Registry.Gather()
    require.NoError(t, err)
    names := map[string]bool{}
    for _, f := range families { names[f.GetName()] = true }
    assert.True(t, names["search_runs_total"])
}
