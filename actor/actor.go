// Package actor implements the registry operations: ownership-gated edits of members and checkers
// and the offline-reporting vote that evicts a checker once more than two thirds of the live
// checker set agrees within the vote window.
package actor

import (
	"uptime/exitcode"
	"uptime/oid"
	"uptime/peer"
	"uptime/state"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultWindow is the number of epochs during which offline votes accumulate.
	DefaultWindow peer.ChainEpoch = 200

	quorumNumerator   = 20000
	quorumDenominator = 30000
)

// Report describes the outcome of an accepted offline vote.
type Report struct {
	Subject peer.ID
	Votes   int  // Votes from live checkers in the active window
	Total   int  // Checker population before eviction
	Evicted bool // Subject was removed from the checker set
}

type Actor struct {
	backend state.Backend
	window  peer.ChainEpoch
}

func New(backend state.Backend, window peer.ChainEpoch) *Actor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Actor{backend: backend, window: window}
}

func (a *Actor) Window() peer.ChainEpoch {
	return a.window
}

func (a *Actor) Backend() state.Backend {
	return a.backend
}

// QuorumReached reports whether votes exceed two thirds of total, using integer arithmetic.
func QuorumReached(total int, votes int) bool {
	return int64(total)*quorumNumerator/quorumDenominator < int64(votes)
}

// Load opens the state the runtime currently points at.
func (a *Actor) Load(rt Runtime) (state.State, error) {
	root, err := rt.Root()
	if err != nil {
		return nil, exitcode.Storagef(err, "load state root")
	}
	return a.backend.Load(root)
}

// transact loads the current state, applies fn and publishes the new root only if fn succeeds.
func (a *Actor) transact(rt Runtime, fn func(st state.State) error) error {
	st, err := a.Load(rt)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return a.commit(rt, st)
}

func (a *Actor) commit(rt Runtime, st state.State) error {
	root, err := st.Flush()
	if err != nil {
		return err
	}
	if err := rt.SetRoot(root); err != nil {
		return exitcode.Storagef(err, "set state root")
	}
	return nil
}

// Constructor creates the registry with the seed peers as checkers.
func (a *Actor) Constructor(rt Runtime, params *InitParams) (*oid.Oid, error) {
	if params == nil {
		return nil, exitcode.ErrCannotDeserialize
	}
	nodes, err := params.Nodes()
	if err != nil {
		return nil, err
	}

	st, err := a.backend.New(nodes)
	if err != nil {
		return nil, err
	}
	root, err := st.Flush()
	if err != nil {
		return nil, err
	}
	if err := rt.SetRoot(root); err != nil {
		return nil, exitcode.Storagef(err, "set state root")
	}

	log.Infof("actor.Constructor: %d genesis checkers, backend %s, root %s", len(nodes), a.backend.Name(), root.String())
	return root, nil
}

func (a *Actor) NewChecker(rt Runtime, info *peer.NodeInfo) error {
	return a.upsertChecker(rt, info)
}

func (a *Actor) NewMember(rt Runtime, info *peer.NodeInfo) error {
	return a.upsertMember(rt, info)
}

// EditChecker is NewChecker under another name: both replace the record if the caller owns it.
func (a *Actor) EditChecker(rt Runtime, info *peer.NodeInfo) error {
	return a.upsertChecker(rt, info)
}

func (a *Actor) EditMember(rt Runtime, info *peer.NodeInfo) error {
	return a.upsertMember(rt, info)
}

func (a *Actor) upsertChecker(rt Runtime, info *peer.NodeInfo) error {
	if err := validate(info); err != nil {
		return err
	}
	return a.transact(rt, func(st state.State) error {
		return st.UpsertChecker(rt.Caller(), info)
	})
}

func (a *Actor) upsertMember(rt Runtime, info *peer.NodeInfo) error {
	if err := validate(info); err != nil {
		return err
	}
	return a.transact(rt, func(st state.State) error {
		return st.UpsertMember(rt.Caller(), info)
	})
}

// RemoveChecker removes the checker registered under the caller's own peer identity.
func (a *Actor) RemoveChecker(rt Runtime) error {
	return a.transact(rt, func(st state.State) error {
		return st.RemoveChecker(rt.Caller(), rt.CallerPeer())
	})
}

// RemoveMember removes the member registered under the caller's own peer identity.
func (a *Actor) RemoveMember(rt Runtime) error {
	return a.transact(rt, func(st state.State) error {
		return st.RemoveMember(rt.Caller(), rt.CallerPeer())
	})
}

// ReportChecker records that the calling checker considers subject offline and evicts subject
// once the live votes in the window exceed two thirds of the checker set. The caller's peer
// identity must name a checker the calling account owns.
func (a *Actor) ReportChecker(rt Runtime, subject peer.ID) (*Report, error) {
	if subject == "" {
		return nil, exitcode.Wrap(exitcode.CannotDeserialize, "empty subject", nil)
	}

	reporter := rt.CallerPeer()
	epoch := rt.CurrEpoch()
	var rep *Report

	err := a.transact(rt, func(st state.State) error {
		// The reporting peer must be a checker owned by the calling account
		self, err := st.Checker(reporter)
		if err != nil {
			return err
		}
		if self == nil || self.Creator != rt.Caller() {
			return exitcode.Wrap(exitcode.NotCaller, "peer "+string(reporter), nil)
		}

		v, err := st.RecordVote(subject, reporter, epoch, a.window)
		if err != nil {
			return err
		}

		// Voters that left the checker set since voting no longer count
		votes := 0
		for _, voter := range v.Voters {
			live, err := st.IsChecker(voter)
			if err != nil {
				return err
			}
			if live {
				votes++
			}
		}

		total, err := st.TotalCheckers()
		if err != nil {
			return err
		}

		rep = &Report{Subject: subject, Votes: votes, Total: total}
		log.Debugf("actor.ReportChecker: %s reported %s at epoch %d (%d/%d)", reporter, subject, epoch, votes, total)

		if !QuorumReached(total, votes) {
			return nil
		}

		if err := st.RemoveCheckerUnchecked(subject); err != nil {
			return err
		}
		if err := st.ClearVotes(subject); err != nil {
			return err
		}
		rep.Evicted = true
		log.Infof("actor.ReportChecker: evicted checker %s with %d of %d votes at epoch %d", subject, votes, total, epoch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// CompactVotes drops every vote record whose window expired at the current epoch.
// It never changes the outcome of a later vote, since a stale record restarts on its next vote.
func (a *Actor) CompactVotes(rt Runtime) (int, error) {
	st, err := a.Load(rt)
	if err != nil {
		return 0, err
	}

	purged, err := st.PurgeStaleVotes(rt.CurrEpoch(), a.window)
	if err != nil {
		return 0, err
	}
	if purged == 0 {
		return 0, nil
	}
	if err := a.commit(rt, st); err != nil {
		return 0, err
	}

	log.Infof("actor.CompactVotes: purged %d stale vote records at epoch %d", purged, rt.CurrEpoch())
	return purged, nil
}
