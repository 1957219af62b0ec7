package commands

import (
	"context"
	"time"

	"uptime/client"
	"uptime/config"
	"uptime/datamodel/block"
	"uptime/peer"
	"uptime/protocol"

	log "github.com/sirupsen/logrus"
)

// view is the read side of the registry, served either by a running node or by the local stores
type view interface {
	Status(ctx context.Context) (*protocol.StatusResponse, error)
	Checkers(ctx context.Context) ([]*peer.NodeInfo, error)
	Members(ctx context.Context) ([]*peer.NodeInfo, error)
	Votes(ctx context.Context, subject peer.ID) (*peer.Votes, error)
	History(ctx context.Context, from uint64, to uint64) ([]*block.Commit, error)
}

// localView reads the stores directly. The node must not be running.
type localView struct {
	reg *registry
}

func (v *localView) Status(ctx context.Context) (*protocol.StatusResponse, error) {
	res := &protocol.StatusResponse{
		Epoch:  v.reg.host.Epoch(),
		Window: v.reg.actor.Window(),
		Layout: v.reg.actor.Backend().Name(),
	}
	ok, err := v.reg.host.Initialized()
	if err != nil || !ok {
		return res, err
	}
	res.Initialized = true
	res.Head, err = v.reg.host.Head()
	return res, err
}

func (v *localView) Checkers(ctx context.Context) ([]*peer.NodeInfo, error) {
	return v.reg.host.Checkers()
}

func (v *localView) Members(ctx context.Context) ([]*peer.NodeInfo, error) {
	return v.reg.host.Members()
}

func (v *localView) Votes(ctx context.Context, subject peer.ID) (*peer.Votes, error) {
	return v.reg.host.Votes(subject)
}

func (v *localView) History(ctx context.Context, from uint64, to uint64) ([]*block.Commit, error) {
	return v.reg.host.History(from, to)
}

type InfoOptions struct {
	Offline bool   // Read the local stores instead of asking the node
	History uint64 // Number of most recent commits to print
}

func RunInfo(ctx context.Context, cfg *config.Config, opts InfoOptions) {
	var v view
	if opts.Offline {
		reg, err := openRegistry(cfg)
		if err != nil {
			log.Fatalf("Failed to open registry: %v", err)
		}
		defer reg.Close()
		v = &localView{reg: reg}
	} else {
		c, err := client.Dial(ctx, cfg.Network.RPCListenAddress)
		if err != nil {
			log.Fatalf("Failed to connect to %s: %v", cfg.Network.RPCListenAddress, err)
		}
		defer c.Close()
		v = c
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status, err := v.Status(cctx)
	if err != nil {
		log.Fatalf("Failed to get status: %v", err)
	}
	log.Infof("Layout: %s, vote window: %d epochs, current epoch: %d", status.Layout, status.Window, status.Epoch)
	if !status.Initialized {
		log.Infof("Registry is not initialized")
		return
	}
	log.Infof("Head: seq %d, root %s, epoch %d, committed %v", status.Head.Seq, status.Head.Root.String(), status.Head.Epoch, status.Head.Time)

	checkers, err := v.Checkers(cctx)
	if err != nil {
		log.Fatalf("Failed to list checkers: %v", err)
	}
	log.Infof("Checkers: %d", len(checkers))
	for _, n := range checkers {
		log.Infof("Checker: %s, creator: %d, addresses: %v", n.ID, n.Creator, n.Addresses)

		votes, err := v.Votes(cctx, n.ID)
		if err != nil {
			log.Errorf("Failed to get votes for %s: %v", n.ID, err)
			continue
		}
		if votes != nil {
			stale := votes.Stale(status.Epoch, status.Window)
			log.Infof("  offline votes: %v, last vote: %d, stale: %t", votes.Voters, votes.LastVote, stale)
		}
	}

	members, err := v.Members(cctx)
	if err != nil {
		log.Fatalf("Failed to list members: %v", err)
	}
	log.Infof("Members: %d", len(members))
	for _, n := range members {
		log.Infof("Member: %s, creator: %d, addresses: %v", n.ID, n.Creator, n.Addresses)
	}

	if opts.History == 0 {
		return
	}
	from := uint64(1)
	if status.Head.Seq > opts.History {
		from = status.Head.Seq - opts.History + 1
	}
	commits, err := v.History(cctx, from, status.Head.Seq)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}
	for _, c := range commits {
		log.Infof("Commit: seq %d, epoch %d, method %d, caller %d, root %s, time %v",
			c.Seq, c.Epoch, c.Method, c.Caller, c.Root.String(), c.Time)
	}
}
