package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"uptime/actor"
	"uptime/client"
	"uptime/config"
	"uptime/host"
	"uptime/peer"

	log "github.com/sirupsen/logrus"
)

type CallOptions struct {
	Address   string // Defaults to the configured RPC address
	Method    string // Name (e.g. "ReportChecker") or number
	Caller    uint64
	Peer      string
	ID        string // Record id for New*/Edit*; defaults to Peer
	Creator   uint64 // Record owner for New*/Edit*; defaults to Caller
	Addresses string // Comma separated
	Subject   string // ReportChecker target
	Genesis   string // Constructor seed, same format as init
	Timeout   time.Duration
}

func parseMethod(s string) (host.MethodNum, error) {
	if m, ok := host.MethodByName(s); ok {
		return m, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown method %q", s)
	}
	return host.MethodNum(n), nil
}

// buildParams returns the parameter value for method, or nil for methods without parameters
func buildParams(method host.MethodNum, opts *CallOptions) (any, error) {
	switch method {
	case host.MethodConstructor:
		genesis, err := ParseGenesis(opts.Genesis)
		if err != nil {
			return nil, err
		}
		return actor.NewInitParams(genesis), nil

	case host.MethodNewChecker, host.MethodNewMember, host.MethodEditChecker, host.MethodEditMember:
		id := opts.ID
		if id == "" {
			id = opts.Peer
		}
		creator := opts.Creator
		if creator == 0 {
			creator = opts.Caller
		}
		var addrs []peer.MultiAddr
		if opts.Addresses != "" {
			addrs = strings.Split(opts.Addresses, ",")
		}
		return peer.NewNodeInfo(peer.ID(id), peer.ActorID(creator), addrs), nil

	case host.MethodReportChecker:
		if opts.Subject == "" {
			return nil, fmt.Errorf("-subject is required for %s", method)
		}
		return peer.ID(opts.Subject), nil
	}
	return nil, nil
}

type callResult struct {
	Method  string        `json:"method"`
	Receipt *host.Receipt `json:"receipt"`
	Code    string        `json:"code"`
	Result  any           `json:"result,omitempty"`
}

func decodeReturn(method host.MethodNum, r *host.Receipt) (any, error) {
	if len(r.Return) == 0 {
		return nil, nil
	}
	var v any
	switch method {
	case host.MethodReportChecker:
		v = &host.ReportReturn{}
	case host.MethodCompactVotes:
		v = &host.CompactReturn{}
	default:
		return nil, nil
	}
	if err := cbor.Unmarshal(r.Return, v); err != nil {
		return nil, err
	}
	return v, nil
}

func RunCall(ctx context.Context, cfg *config.Config, opts CallOptions) {
	method, err := parseMethod(opts.Method)
	if err != nil {
		log.Fatalf("Invalid method: %v", err)
	}
	params, err := buildParams(method, &opts)
	if err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	addr := opts.Address
	if addr == "" {
		addr = cfg.Network.RPCListenAddress
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := client.Dial(cctx, addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	defer c.Close()

	r, err := c.Send(cctx, method, peer.ActorID(opts.Caller), peer.ID(opts.Peer), params)
	if err != nil {
		log.Fatalf("Call failed: %v", err)
	}

	res := &callResult{Method: method.String(), Receipt: r, Code: r.ExitCode.String()}
	if res.Result, err = decodeReturn(method, r); err != nil {
		log.Errorf("Failed to decode return value: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("Failed to print receipt: %v", err)
	}

	if !r.Ok() {
		c.Close()
		os.Exit(1)
	}
}
