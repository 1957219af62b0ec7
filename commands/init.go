package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"uptime/config"
	"uptime/peer"

	log "github.com/sirupsen/logrus"
)

type InitOptions struct {
	DataDir string // Overrides datastore paths when set
	Layout  string
	Backend string
	Genesis string // "id=creator[@addr|addr],..."
}

// ParseGenesis reads a comma separated list of id=creator entries, each optionally followed by
// @ and a |-separated list of addresses.
func ParseGenesis(s string) ([]*peer.NodeInfo, error) {
	var nodes []*peer.NodeInfo
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		var addrs []peer.MultiAddr
		if at := strings.IndexByte(entry, '@'); at >= 0 {
			addrs = strings.Split(entry[at+1:], "|")
			entry = entry[:at]
		}

		id, creator, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("genesis entry %q: expected id=creator", entry)
		}
		c, err := strconv.ParseUint(creator, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("genesis entry %q: %w", entry, err)
		}

		n := peer.NewNodeInfo(peer.ID(id), peer.ActorID(c), addrs)
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("genesis entry %q: %w", entry, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func RunInit(ctx context.Context, cfg *config.Config, opts InitOptions) {
	if opts.DataDir != "" {
		cfg.DataStore.BlockStorePath = filepath.Join(opts.DataDir, "blocks")
		cfg.DataStore.CommitLogPath = filepath.Join(opts.DataDir, "commits")
	}
	if opts.Layout != "" {
		cfg.State.Layout = opts.Layout
	}
	if opts.Backend != "" {
		cfg.DataStore.BlocksBackend = opts.Backend
	}

	genesis, err := ParseGenesis(opts.Genesis)
	if err != nil {
		log.Fatalf("Invalid genesis: %v", err)
	}
	cfg.Genesis = genesis
	cfg.Protocol.GenesisTime = time.Now().UTC().Truncate(time.Second)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.Save(); err != nil {
		log.Fatalf("Failed to save config: %v", err)
	}

	log.Infof("Initialized config: layout %s, blocks %s (%s), commits %s, %d genesis checkers",
		cfg.State.Layout, cfg.DataStore.BlockStorePath, cfg.DataStore.BlocksBackend, cfg.DataStore.CommitLogPath, len(cfg.Genesis))
}
