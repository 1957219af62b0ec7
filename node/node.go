// Package node runs a registry host as a network service: the Registry RPC service, the
// metrics endpoint and the periodic vote compaction.
package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"uptime/actor"
	"uptime/config"
	"uptime/helper/timer"
	"uptime/host"
	"uptime/metrics"
	"uptime/net/crpc"
	"uptime/peer"

	log "github.com/sirupsen/logrus"
)

type Node struct {
	Host   *host.Host
	Window peer.ChainEpoch
	Layout string

	// Networking
	RpcServer   *crpc.Server
	RpcHandlers *Registry

	metricsListener net.Listener
	compaction      *timer.Interval
}

// New wires h to the RPC server. metricsListener may be nil to disable the metrics endpoint.
func New(cfg *config.Config, h *host.Host, a *actor.Actor, rpcServer *crpc.Server, metricsListener net.Listener) (*Node, error) {
	node := &Node{
		Host:            h,
		Window:          a.Window(),
		Layout:          a.Backend().Name(),
		RpcServer:       rpcServer,
		metricsListener: metricsListener,
		compaction: &timer.Interval{
			Duration: cfg.Compaction.Interval.Std(),
			Jitter:   cfg.Compaction.Jitter.Std(),
		},
	}

	node.RpcHandlers = &Registry{node: node}
	if err := node.RpcServer.Register(node.RpcHandlers); err != nil {
		return nil, err
	}

	log.Infof("Registry node listening on %s (state layout %s, vote window %d)", rpcServer.Addr(), node.Layout, node.Window)
	return node, nil
}

// Bootstrap runs the constructor with genesis when nothing was committed yet.
func (n *Node) Bootstrap(ctx context.Context, genesis []*peer.NodeInfo) error {
	ok, err := n.Host.Initialized()
	if err != nil {
		return err
	}
	if ok {
		log.Debugf("Bootstrap: registry already initialized")
		return nil
	}

	params, err := host.EncodeParams(actor.NewInitParams(genesis))
	if err != nil {
		return err
	}
	r := n.Host.Invoke(ctx, &host.Message{Method: host.MethodConstructor, Params: params})
	if !r.Ok() {
		return r.Err()
	}

	log.Infof("Bootstrap: registry initialized with %d genesis checkers, root %s", len(genesis), r.Root.String())
	return nil
}

// This is run via the RunWithTicker() helper
func (n *Node) compactVotes(ctx context.Context) error {
	ok, err := n.Host.Initialized()
	if err != nil || !ok {
		return err
	}

	r := n.Host.Invoke(ctx, &host.Message{Method: host.MethodCompactVotes})
	if !r.Ok() {
		log.Errorf("compactVotes: %s", r.Message)
	}
	return nil
}

func (n *Node) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warnf("serveMetrics: shutdown: %v", err)
		}
	}()

	log.Infof("Metrics available on http://%s/metrics", n.metricsListener.Addr())
	if err := srv.Serve(n.metricsListener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (n *Node) Run(ctx context.Context) error {
	wg, cctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		return n.RpcServer.Serve(cctx)
	})

	if n.metricsListener != nil {
		wg.Go(func() error {
			return n.serveMetrics(cctx)
		})
	}

	if n.compaction.Duration > 0 {
		wg.Go(func() error {
			err := timer.RunWithTicker(cctx, n.compaction, n.compactVotes)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return wg.Wait()
}
