package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"uptime/peer"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

const (
	BackendLevelDB = "leveldb"
	BackendFlatFS  = "flatfs"

	LayoutMap  = "map"
	LayoutTree = "tree"
)

// Config represents the configuration of an uptime registry node
type Config struct {
	// Default config file location
	configFile string

	Network struct {
		RPCListenAddress     string `json:"rpc_listen"`
		MetricsListenAddress string `json:"metrics_listen"` // Empty disables the metrics endpoint
	} `json:"network"`

	DataStore struct {
		BlocksBackend  string `json:"blocks_backend"`
		BlockStorePath string `json:"blocks"`
		CommitLogPath  string `json:"commits"`
	} `json:"datastore"`

	State struct {
		Layout string `json:"layout"`
	} `json:"state"`

	Protocol struct {
		VoteWindow    int64     `json:"vote_window"` // In epochs
		EpochDuration Duration  `json:"epoch_duration"`
		GenesisTime   time.Time `json:"genesis_time"`
	} `json:"protocol"`

	// Background purge of expired vote records
	Compaction struct {
		Interval Duration `json:"interval"` // Zero disables compaction
		Jitter   Duration `json:"jitter"`
	} `json:"compaction"`

	// Checkers installed by the constructor when the commit log is empty
	Genesis []*peer.NodeInfo `json:"genesis"`
}

// NewEmptyConfig generates a new configuration with default settings
func NewEmptyConfig(configFile string) *Config {
	cfg := &Config{}

	cfg.configFile = configFile

	cfg.Network.RPCListenAddress = "127.0.0.1:5001"
	cfg.Network.MetricsListenAddress = "127.0.0.1:9101"

	cfg.DataStore.BlocksBackend = BackendLevelDB
	cfg.DataStore.BlockStorePath = "/tmp/uptime/blocks"
	cfg.DataStore.CommitLogPath = "/tmp/uptime/commits"

	cfg.State.Layout = LayoutTree

	cfg.Protocol.VoteWindow = 200
	cfg.Protocol.EpochDuration = Duration(30 * time.Second)

	cfg.Compaction.Interval = Duration(10 * time.Minute)
	cfg.Compaction.Jitter = Duration(30 * time.Second)

	return cfg
}

func NewConfigFromFile(configFile string) (*Config, error) {
	cfg := NewEmptyConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DataStore.BlocksBackend {
	case BackendLevelDB, BackendFlatFS:
	default:
		return fmt.Errorf("unknown blocks backend %q", c.DataStore.BlocksBackend)
	}

	switch c.State.Layout {
	case LayoutMap, LayoutTree:
	default:
		return fmt.Errorf("unknown state layout %q", c.State.Layout)
	}

	if c.DataStore.BlockStorePath == "" || c.DataStore.CommitLogPath == "" {
		return fmt.Errorf("datastore paths must be set")
	}
	if c.Protocol.VoteWindow <= 0 {
		return fmt.Errorf("vote window must be positive, got %d", c.Protocol.VoteWindow)
	}
	if c.Protocol.EpochDuration <= 0 {
		return fmt.Errorf("epoch duration must be positive")
	}
	if c.Compaction.Interval < 0 || c.Compaction.Jitter < 0 {
		return fmt.Errorf("compaction interval and jitter must not be negative")
	}
	if c.Compaction.Interval > 0 && c.Compaction.Jitter >= c.Compaction.Interval {
		return fmt.Errorf("compaction jitter %s must be less than interval %s", c.Compaction.Jitter.Std(), c.Compaction.Interval.Std())
	}

	for i, n := range c.Genesis {
		if n == nil {
			return fmt.Errorf("genesis[%d] is empty", i)
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save() error {
	log.Infof("Saving config to %s", c.configFile)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configFile, data, 0644)
}

func (c *Config) Load() error {
	log.Infof("Loading config from %s", c.configFile)
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c); err != nil {
		return err
	}

	return nil
}
