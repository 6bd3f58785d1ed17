package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpsearch/internal/opt"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	s, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, "8080", s.Port)
	assert.True(t, s.DBMigrate)
	assert.Equal(t, 5.0, s.RateRPS)
	assert.Equal(t, 10, s.RateBurst)
	assert.Equal(t, logrus.InfoLevel, s.LogLevel)
	assert.Equal(t, "dev", s.AuthMode)
	assert.Equal(t, 5*time.Minute, s.RunTimeout)
	assert.Equal(t, 8, s.WebhookMaxAttempts)
	assert.Equal(t, "memory", s.Keys()["DATABASE"])
}

func TestFromEnv_Overrides(t *testing.T) {
	s, err := FromEnv(env(map[string]string{
		"PORT":             "9090",
		"DATABASE_URL":     "postgres://localhost/vrp",
		"DB_MIGRATE":       "false",
		"REDIS_URL":        "redis://localhost:6379/0",
		"RATE_RPS":         "0.5",
		"LOG_LEVEL":        "debug",
		"AUTH_MODE":        "HMAC",
		"AUTH_HMAC_SECRET": "s3cret",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9090", s.Port)
	assert.False(t, s.DBMigrate)
	assert.Equal(t, 0.5, s.RateRPS)
	assert.Equal(t, logrus.DebugLevel, s.LogLevel)
	assert.Equal(t, "hmac", s.AuthMode)

	keys := s.Keys()
	assert.Equal(t, "postgres", keys["DATABASE"])
	assert.Equal(t, "redis", keys["BROKER"])
	for _, v := range keys {
		assert.NotContains(t, v, "s3cret")
	}
}

func TestFromEnv_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"rate":        {"RATE_RPS": "fast"},
		"burst":       {"RATE_BURST": "-1"},
		"level":       {"LOG_LEVEL": "loud"},
		"timeout":     {"RUN_TIMEOUT": "soon"},
		"hmac secret": {"AUTH_MODE": "hmac"},
		"auth mode":   {"AUTH_MODE": "jwks"},
		"attempts":    {"WEBHOOK_MAX_ATTEMPTS": "0"},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(m))
			assert.Error(t, err)
		})
	}
}

func TestDecodeProfiles(t *testing.T) {
	src := `
profiles:
  fast:
    algorithm: lns
    maxIterations: 50
    removalFraction: 0.3
  green:
    algorithm: sa
    construction: even-split
    vehicles: 2
    neighborhoods: [swap]
`
	p, err := DecodeProfiles(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, opt.AlgorithmLNS, p["fast"].Algorithm)
	assert.Equal(t, 0.3, p["fast"].RemovalFraction)
	assert.Equal(t, 2, p["green"].Vehicles)

	_, err = DecodeProfiles(strings.NewReader("profiles:\n  x:\n    iterations: 5\n"))
	assert.Error(t, err, "unknown key")

	_, err = DecodeProfiles(strings.NewReader("profiles:\n  x:\n    algorithm: tabu\n"))
	assert.ErrorIs(t, err, opt.ErrInvalidConfig)

	empty, err := DecodeProfiles(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  vns:\n    algorithm: vns\n"), 0o644))
	p, err := LoadProfiles(path)
	require.NoError(t, err)
	assert.Contains(t, p, "vns")

	_, err = LoadProfiles(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeConfig(t *testing.T) {
	c, err := DecodeConfig(strings.NewReader("algorithm: vns\nneighborhoods: [relocate, 2opt]\nlocalSearchLimit: 4\nseed: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, c.Algorithm)
	assert.Equal(t, opt.AlgorithmVNS, *c.Algorithm)
	assert.Equal(t, []string{"relocate", "2opt"}, c.Neighborhoods)
	require.NotNil(t, c.Seed, "an explicit zero is present")
	assert.Zero(t, *c.Seed)
	assert.Nil(t, c.MaxIterations)

	_, err = DecodeConfig(strings.NewReader("algo: vns\n"))
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }

func TestOverlay(t *testing.T) {
	base := opt.Config{Algorithm: opt.AlgorithmLNS, MaxIterations: 50, RemovalFraction: 0.3, Seed: 7}
	got := Overlay(base, Patch{MaxIterations: ptr(10), RemovalCount: ptr(2)})
	assert.Equal(t, opt.AlgorithmLNS, got.Algorithm)
	assert.Equal(t, 10, got.MaxIterations)
	assert.Equal(t, 2, got.RemovalCount)
	assert.Zero(t, got.RemovalFraction)
	assert.Equal(t, int64(7), got.Seed)

	assert.Equal(t, base, Overlay(base, Patch{}))
}

func TestOverlay_ExplicitZero(t *testing.T) {
	base := opt.Config{Algorithm: opt.AlgorithmSA, Seed: 7, InitialTemp: 500, Vehicles: 3, DestroyOps: []string{"related"}}
	got := Overlay(base, Patch{Seed: ptr(int64(0)), Vehicles: ptr(0), InitialTemp: ptr(0.0)})
	assert.Zero(t, got.Seed)
	assert.Zero(t, got.Vehicles)
	assert.Zero(t, got.InitialTemp)
	assert.Equal(t, []string{"related"}, got.DestroyOps)

	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{"seed":0,"destroyOps":["random"]}`), &p))
	got = Overlay(base, p)
	assert.Zero(t, got.Seed)
	assert.Equal(t, []string{"random"}, got.DestroyOps)
	assert.Equal(t, opt.AlgorithmSA, got.Algorithm)
}
