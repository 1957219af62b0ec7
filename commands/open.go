package commands

import (
	"fmt"
	"time"

	"uptime/actor"
	"uptime/config"
	"uptime/datamodel/block"
	"uptime/datastore/flatfs"
	"uptime/datastore/leveldb"
	"uptime/host"
	"uptime/peer"
	"uptime/state"
	"uptime/state/mapstate"
	"uptime/state/treestate"
)

// registry bundles the stores and the host built from a config
type registry struct {
	blocks  block.BlockStore
	commits block.CommitLog
	actor   *actor.Actor
	host    *host.Host
}

func openBlockStore(cfg *config.Config) (block.BlockStore, error) {
	switch cfg.DataStore.BlocksBackend {
	case config.BackendFlatFS:
		return flatfs.New(cfg.DataStore.BlockStorePath)
	case config.BackendLevelDB:
		return leveldb.NewBlockStore(cfg.DataStore.BlockStorePath)
	}
	return nil, fmt.Errorf("unknown blocks backend %q", cfg.DataStore.BlocksBackend)
}

func newBackend(cfg *config.Config, bs block.BlockStore) (state.Backend, error) {
	switch cfg.State.Layout {
	case config.LayoutMap:
		return mapstate.NewBackend(bs), nil
	case config.LayoutTree:
		return treestate.NewBackend(bs), nil
	}
	return nil, fmt.Errorf("unknown state layout %q", cfg.State.Layout)
}

func openRegistry(cfg *config.Config) (*registry, error) {
	bs, err := openBlockStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open block store: %w", err)
	}

	commits, err := leveldb.NewCommitLog(cfg.DataStore.CommitLogPath)
	if err != nil {
		bs.Close()
		return nil, fmt.Errorf("failed to open commit log: %w", err)
	}

	backend, err := newBackend(cfg, bs)
	if err != nil {
		bs.Close()
		commits.Close()
		return nil, err
	}

	genesis := cfg.Protocol.GenesisTime
	if genesis.IsZero() {
		genesis = time.Now()
	}

	a := actor.New(backend, peer.ChainEpoch(cfg.Protocol.VoteWindow))
	clock := host.NewEpochClock(genesis, cfg.Protocol.EpochDuration.Std())

	return &registry{
		blocks:  bs,
		commits: commits,
		actor:   a,
		host:    host.New(a, commits, clock),
	}, nil
}

func (r *registry) Close() error {
	err := r.commits.Close()
	if berr := r.blocks.Close(); err == nil {
		err = berr
	}
	return err
}
