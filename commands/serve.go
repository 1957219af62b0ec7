package commands

import (
	"context"
	"net"

	"uptime/config"
	"uptime/net/crpc"
	"uptime/node"

	log "github.com/sirupsen/logrus"
)

func RunServe(ctx context.Context, cfg *config.Config) {
	reg, err := openRegistry(cfg)
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}
	defer reg.Close()

	rpcl, err := net.Listen("tcp", cfg.Network.RPCListenAddress)
	if err != nil {
		log.Fatalf("Failed to create RPC listener: %v", err)
	}

	var ml net.Listener
	if cfg.Network.MetricsListenAddress != "" {
		if ml, err = net.Listen("tcp", cfg.Network.MetricsListenAddress); err != nil {
			log.Fatalf("Failed to create metrics listener: %v", err)
		}
	}

	n, err := node.New(cfg, reg.host, reg.actor, crpc.NewServer(rpcl), ml)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}

	if len(cfg.Genesis) > 0 {
		if err := n.Bootstrap(ctx, cfg.Genesis); err != nil {
			log.Fatalf("Failed to initialize registry: %v", err)
		}
	} else if ok, _ := reg.host.Initialized(); !ok {
		log.Warnf("Registry is not initialized and the config has no genesis; send a Constructor message to initialize it")
	}

	if err := n.Run(ctx); err != nil {
		log.Errorf("Node stopped: %v", err)
		return
	}
	log.Info("Node stopped")
}
