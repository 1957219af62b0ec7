package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"uptime/peer"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uptime.json")

	cfg := NewEmptyConfig(path)
	cfg.State.Layout = LayoutMap
	cfg.Protocol.GenesisTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg.Genesis = []*peer.NodeInfo{peer.NewNodeInfo("QmA", 1, []peer.MultiAddr{"/ip4/10.0.0.1/tcp/4001"})}
	require.NoError(t, cfg.Save())

	loaded, err := NewConfigFromFile(path)
	require.NoError(t, err)
	require.Equal(t, LayoutMap, loaded.State.Layout)
	require.Equal(t, 30*time.Second, loaded.Protocol.EpochDuration.Std())
	require.True(t, cfg.Protocol.GenesisTime.Equal(loaded.Protocol.GenesisTime))
	require.Len(t, loaded.Genesis, 1)
	require.True(t, cfg.Genesis[0].Equal(loaded.Genesis[0]))
}

func TestDurationJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uptime.json")
	data := `{"protocol": {"epoch_duration": "1m", "vote_window": 10}, "compaction": {"interval": 5000000000, "jitter": ""}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)
	require.Equal(t, time.Minute, cfg.Protocol.EpochDuration.Std())
	require.Equal(t, 5*time.Second, cfg.Compaction.Interval.Std())
	require.Zero(t, cfg.Compaction.Jitter)
	require.Equal(t, int64(10), cfg.Protocol.VoteWindow)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"backend":  func(c *Config) { c.DataStore.BlocksBackend = "s3" },
		"layout":   func(c *Config) { c.State.Layout = "hamt" },
		"window":   func(c *Config) { c.Protocol.VoteWindow = 0 },
		"epoch":    func(c *Config) { c.Protocol.EpochDuration = 0 },
		"jitter":   func(c *Config) { c.Compaction.Jitter = c.Compaction.Interval },
		"genesis":  func(c *Config) { c.Genesis = []*peer.NodeInfo{peer.NewNodeInfo("QmA", 0, nil)} },
		"no paths": func(c *Config) { c.DataStore.CommitLogPath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewEmptyConfig("")
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, NewEmptyConfig("").Validate())
}
