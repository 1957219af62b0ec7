// Package client is a typed wrapper over the Registry RPC service.
package client

import (
	"context"

	"uptime/actor"
	"uptime/datamodel/block"
	"uptime/host"
	"uptime/net/crpc"
	"uptime/peer"
	"uptime/protocol"
)

type Client struct {
	*crpc.Client
}

func Dial(ctx context.Context, address string) (*Client, error) {
	c, err := crpc.Dial(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c}, nil
}

// Invoke sends msg and returns its receipt. A failed message is not a transport error:
// check the receipt's exit code.
func (c *Client) Invoke(ctx context.Context, msg *host.Message) (*host.Receipt, error) {
	res := &host.Receipt{}
	if err := c.Call(ctx, protocol.MethodInvoke, msg, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Send encodes params and invokes method on behalf of caller and its peer identity.
func (c *Client) Send(ctx context.Context, method host.MethodNum, caller peer.ActorID, p peer.ID, params any) (*host.Receipt, error) {
	msg := &host.Message{Method: method, Caller: caller, Peer: p}
	if params != nil {
		b, err := host.EncodeParams(params)
		if err != nil {
			return nil, err
		}
		msg.Params = b
	}
	return c.Invoke(ctx, msg)
}

func (c *Client) Construct(ctx context.Context, caller peer.ActorID, genesis []*peer.NodeInfo) (*host.Receipt, error) {
	return c.Send(ctx, host.MethodConstructor, caller, "", actor.NewInitParams(genesis))
}

func (c *Client) Report(ctx context.Context, caller peer.ActorID, reporter peer.ID, subject peer.ID) (*host.Receipt, error) {
	return c.Send(ctx, host.MethodReportChecker, caller, reporter, subject)
}

func (c *Client) Checkers(ctx context.Context) ([]*peer.NodeInfo, error) {
	res := &protocol.ListResponse{}
	if err := c.Call(ctx, protocol.MethodCheckers, &protocol.ListRequest{}, res); err != nil {
		return nil, err
	}
	return res.Nodes, nil
}

func (c *Client) Members(ctx context.Context) ([]*peer.NodeInfo, error) {
	res := &protocol.ListResponse{}
	if err := c.Call(ctx, protocol.MethodMembers, &protocol.ListRequest{}, res); err != nil {
		return nil, err
	}
	return res.Nodes, nil
}

func (c *Client) Votes(ctx context.Context, subject peer.ID) (*peer.Votes, error) {
	res := &protocol.VotesResponse{}
	if err := c.Call(ctx, protocol.MethodVotes, &protocol.VotesRequest{Subject: subject}, res); err != nil {
		return nil, err
	}
	return res.Votes, nil
}

func (c *Client) History(ctx context.Context, from uint64, to uint64) ([]*block.Commit, error) {
	res := &protocol.HistoryResponse{}
	if err := c.Call(ctx, protocol.MethodHistory, &protocol.HistoryRequest{From: from, To: to}, res); err != nil {
		return nil, err
	}
	return res.Commits, nil
}

func (c *Client) Status(ctx context.Context) (*protocol.StatusResponse, error) {
	res := &protocol.StatusResponse{}
	if err := c.Call(ctx, protocol.MethodStatus, &protocol.StatusRequest{}, res); err != nil {
		return nil, err
	}
	return res, nil
}
