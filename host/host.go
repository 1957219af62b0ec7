// Package host applies messages to the registry one at a time. It owns the commit log that acts as
// the state root pointer, assigns epochs from a clock, and turns every outcome into a receipt.
package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"uptime/actor"
	"uptime/datamodel/block"
	"uptime/exitcode"
	"uptime/metrics"
	"uptime/oid"
	"uptime/peer"
	"uptime/state"

	log "github.com/sirupsen/logrus"
)

type Host struct {
	mu      sync.Mutex // serializes messages and queries against the head
	actor   *actor.Actor
	commits block.CommitLog
	clock   Clock
	epoch   peer.ChainEpoch // highest epoch handed out so far
}

// New starts the epoch at the head commit's, so a reopened ledger never hands out an earlier epoch.
func New(a *actor.Actor, commits block.CommitLog, clock Clock) *Host {
	h := &Host{actor: a, commits: commits, clock: clock}
	head, err := commits.Head()
	switch {
	case err == nil:
		h.epoch = head.Epoch
	case !errors.Is(err, block.ErrNoRoot):
		log.Errorf("host.New: failed to read head commit: %v", err)
	}
	return h
}

// invocation is the Runtime of a single message
type invocation struct {
	h      *Host
	msg    *Message
	epoch  peer.ChainEpoch
	commit *block.Commit
}

var _ actor.Runtime = (*invocation)(nil)

func (inv *invocation) Caller() peer.ActorID       { return inv.msg.Caller }
func (inv *invocation) CallerPeer() peer.ID        { return inv.msg.Peer }
func (inv *invocation) CurrEpoch() peer.ChainEpoch { return inv.epoch }

func (inv *invocation) Root() (*oid.Oid, error) {
	if inv.commit != nil {
		return &inv.commit.Root, nil
	}
	head, err := inv.h.commits.Head()
	if err != nil {
		return nil, err
	}
	return &head.Root, nil
}

func (inv *invocation) SetRoot(root *oid.Oid) error {
	c, err := inv.h.commits.Append(&block.Commit{
		Root:   *root,
		Epoch:  inv.epoch,
		Method: uint64(inv.msg.Method),
		Caller: inv.msg.Caller,
		Time:   time.Now(),
	})
	if err != nil {
		return err
	}
	inv.commit = c
	return nil
}

// nextEpoch never goes backwards, even if the clock does
func (h *Host) nextEpoch() peer.ChainEpoch {
	if e := h.clock.Epoch(); e > h.epoch {
		h.epoch = e
	}
	return h.epoch
}

// Invoke applies msg and returns its receipt. Failures are reported in the receipt, never
// as a partially applied state.
func (h *Host) Invoke(ctx context.Context, msg *Message) *Receipt {
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return receipt(nil, nil, exitcode.Storagef(err, "invoke %s", msg.Method))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	inv := &invocation{h: h, msg: msg, epoch: h.nextEpoch()}
	ret, err := h.dispatch(inv)

	rcpt := receipt(inv.commit, ret, err)
	metrics.ObserveInvocation(msg.Method.String(), rcpt.ExitCode.String(), started)

	if err != nil {
		log.Warnf("host.Invoke: %s from %d (%s) at epoch %d failed: %v", msg.Method, msg.Caller, msg.Peer, inv.epoch, err)
		return rcpt
	}

	if inv.commit != nil {
		log.Infof("host.Invoke: %s from %d (%s) at epoch %d committed seq %d root %s",
			msg.Method, msg.Caller, msg.Peer, inv.epoch, inv.commit.Seq, inv.commit.Root.String())
		h.updatePopulation(&inv.commit.Root)
	}
	return rcpt
}

func receipt(commit *block.Commit, ret []byte, err error) *Receipt {
	if err != nil {
		return &Receipt{ExitCode: exitcode.CodeOf(err), Message: err.Error()}
	}
	r := &Receipt{ExitCode: exitcode.Ok, Return: ret}
	if commit != nil {
		root := commit.Root
		r.Seq = commit.Seq
		r.Root = &root
	}
	return r
}

func (h *Host) dispatch(inv *invocation) ([]byte, error) {
	msg := inv.msg
	a := h.actor

	switch msg.Method {
	case MethodConstructor:
		if _, err := h.commits.Head(); err == nil {
			return nil, exitcode.ErrAlreadyInitialized
		} else if !errors.Is(err, block.ErrNoRoot) {
			return nil, exitcode.Storagef(err, "read head")
		}
		params := &actor.InitParams{}
		if err := DecodeParams(msg.Params, params); err != nil {
			return nil, err
		}
		_, err := a.Constructor(inv, params)
		return nil, err

	case MethodNewChecker, MethodNewMember, MethodEditChecker, MethodEditMember:
		info := &peer.NodeInfo{}
		if err := DecodeParams(msg.Params, info); err != nil {
			return nil, err
		}
		switch msg.Method {
		case MethodNewChecker:
			return nil, a.NewChecker(inv, info)
		case MethodNewMember:
			return nil, a.NewMember(inv, info)
		case MethodEditChecker:
			return nil, a.EditChecker(inv, info)
		default:
			return nil, a.EditMember(inv, info)
		}

	case MethodRemoveChecker:
		return nil, a.RemoveChecker(inv)

	case MethodRemoveMember:
		return nil, a.RemoveMember(inv)

	case MethodReportChecker:
		var subject peer.ID
		if err := DecodeParams(msg.Params, &subject); err != nil {
			return nil, err
		}
		rep, err := a.ReportChecker(inv, subject)
		if err != nil {
			return nil, err
		}
		if rep.Evicted {
			metrics.Evictions.Inc()
		}
		return cbor.Marshal(&ReportReturn{Votes: rep.Votes, Total: rep.Total, Evicted: rep.Evicted})

	case MethodCompactVotes:
		purged, err := a.CompactVotes(inv)
		if err != nil {
			return nil, err
		}
		return cbor.Marshal(&CompactReturn{Purged: purged})
	}

	return nil, exitcode.Wrap(exitcode.UnhandledMethod, msg.Method.String(), nil)
}

func (h *Host) updatePopulation(root *oid.Oid) {
	st, err := h.actor.Backend().Load(root)
	if err != nil {
		log.Errorf("host.updatePopulation: %v", err)
		return
	}
	checkers, err := st.TotalCheckers()
	if err != nil {
		log.Errorf("host.updatePopulation: %v", err)
		return
	}
	members, err := st.TotalMembers()
	if err != nil {
		log.Errorf("host.updatePopulation: %v", err)
		return
	}
	metrics.SetPopulation(checkers, members)
}

// view runs fn against the state at the head
func (h *Host) view(fn func(st state.State) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	head, err := h.commits.Head()
	if err != nil {
		return exitcode.Storagef(err, "read head")
	}
	st, err := h.actor.Backend().Load(&head.Root)
	if err != nil {
		return err
	}
	return fn(st)
}

// Initialized reports whether the constructor has committed.
func (h *Host) Initialized() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.commits.Head()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, block.ErrNoRoot):
		return false, nil
	}
	return false, err
}

func (h *Host) Head() (*block.Commit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.commits.Head()
}

func (h *Host) Checkers() ([]*peer.NodeInfo, error) {
	var out []*peer.NodeInfo
	err := h.view(func(st state.State) (err error) {
		out, err = st.Checkers()
		return err
	})
	return out, err
}

func (h *Host) Members() ([]*peer.NodeInfo, error) {
	var out []*peer.NodeInfo
	err := h.view(func(st state.State) (err error) {
		out, err = st.Members()
		return err
	})
	return out, err
}

// Votes returns the vote record against subject, or nil if there is none.
func (h *Host) Votes(subject peer.ID) (*peer.Votes, error) {
	var out *peer.Votes
	err := h.view(func(st state.State) (err error) {
		out, err = st.Votes(subject)
		return err
	})
	return out, err
}

// History returns commits with sequence numbers in [from, to].
func (h *Host) History(from uint64, to uint64) ([]*block.Commit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.commits.EnumerateBySeq(from, to)
}

// Epoch is the epoch the next message would run at.
func (h *Host) Epoch() peer.ChainEpoch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return max(h.epoch, h.clock.Epoch())
}
