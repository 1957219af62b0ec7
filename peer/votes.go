package peer

import (
	"slices"

	"uptime/exitcode"
)

// Votes collects offline reports against one checker (the subject).
type Votes struct {
	LastVote ChainEpoch `cbor:"1,keyasint" json:"last_vote"`                   // Epoch of the latest admitted vote
	Voters   []ID       `cbor:"2,keyasint,omitempty" json:"voters,omitempty"` // Checkers that voted in the active window
}

func NewVotes(epoch ChainEpoch) *Votes {
	return &Votes{LastVote: epoch}
}

// Stale reports whether the latest vote fell out of the window at epoch.
func (v *Votes) Stale(epoch ChainEpoch, window ChainEpoch) bool {
	return v.LastVote+window < epoch
}

func (v *Votes) HasVoted(p ID) bool {
	return slices.Contains(v.Voters, p)
}

func (v *Votes) Vote(p ID, epoch ChainEpoch) {
	v.Voters = append(v.Voters, p)
	v.LastVote = epoch
}

func (v *Votes) TotalVotes() int {
	return len(v.Voters)
}

func (v *Votes) Clone() *Votes {
	return &Votes{LastVote: v.LastVote, Voters: slices.Clone(v.Voters)}
}

// AdmitVote returns a new record with voter admitted at epoch. The input record is not modified.
// A missing or stale record starts a fresh window; within the window a second vote from the
// same voter fails with AlreadyVoted.
func AdmitVote(rec *Votes, voter ID, epoch ChainEpoch, window ChainEpoch) (*Votes, error) {
	if rec == nil || rec.Stale(epoch, window) {
		fresh := NewVotes(epoch)
		fresh.Vote(voter, epoch)
		return fresh, nil
	}

	if rec.HasVoted(voter) {
		return nil, exitcode.ErrAlreadyVoted
	}

	next := rec.Clone()
	next.Vote(voter, epoch)
	return next, nil
}
