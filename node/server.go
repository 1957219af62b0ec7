package node

import (
	"context"
	"fmt"

	"uptime/host"
	"uptime/protocol"

	log "github.com/sirupsen/logrus"
)

// Registry is the RPC service exposed by the node
type Registry struct {
	node *Node
}

// RPC: Invoke
//
// Caller and Peer are taken from the message as sent. The RPC listener is the authentication
// boundary and must only be reachable by trusted hosts.
func (s *Registry) Invoke(req *host.Message, res *host.Receipt) error {
	log.Debugf("Registry.Invoke: %s from %d (%s)", req.Method, req.Caller, req.Peer)
	*res = *s.node.Host.Invoke(context.Background(), req)
	return nil
}

// RPC: Checkers
func (s *Registry) Checkers(req *protocol.ListRequest, res *protocol.ListResponse) error {
	nodes, err := s.node.Host.Checkers()
	if err != nil {
		return err
	}
	res.Nodes = nodes
	return nil
}

// RPC: Members
func (s *Registry) Members(req *protocol.ListRequest, res *protocol.ListResponse) error {
	nodes, err := s.node.Host.Members()
	if err != nil {
		return err
	}
	res.Nodes = nodes
	return nil
}

// RPC: Votes
func (s *Registry) Votes(req *protocol.VotesRequest, res *protocol.VotesResponse) error {
	v, err := s.node.Host.Votes(req.Subject)
	if err != nil {
		return err
	}
	res.Votes = v
	return nil
}

// RPC: History
func (s *Registry) History(req *protocol.HistoryRequest, res *protocol.HistoryResponse) error {
	from := max(req.From, 1)
	if req.To != 0 && req.To < from {
		return fmt.Errorf("invalid history range [%d, %d]", from, req.To)
	}
	to := from + protocol.MaxHistoryBatch - 1
	if req.To != 0 {
		to = min(to, req.To)
	}

	commits, err := s.node.Host.History(from, to)
	if err != nil {
		return err
	}
	res.Commits = commits
	return nil
}

// RPC: Status
func (s *Registry) Status(req *protocol.StatusRequest, res *protocol.StatusResponse) error {
	ok, err := s.node.Host.Initialized()
	if err != nil {
		return err
	}
	res.Initialized = ok
	if ok {
		if res.Head, err = s.node.Host.Head(); err != nil {
			return err
		}
	}
	res.Epoch = s.node.Host.Epoch()
	res.Window = s.node.Window
	res.Layout = s.node.Layout
	return nil
}
