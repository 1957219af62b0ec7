package host

import (
	"time"

	"uptime/peer"
)

// Clock supplies the epoch of the next message.
type Clock interface {
	Epoch() peer.ChainEpoch
}

type ClockFunc func() peer.ChainEpoch

func (f ClockFunc) Epoch() peer.ChainEpoch {
	return f()
}

// EpochClock derives epochs from wall time: epoch n starts at Genesis + n*Duration.
type EpochClock struct {
	Genesis  time.Time
	Duration time.Duration

	now func() time.Time
}

func NewEpochClock(genesis time.Time, duration time.Duration) *EpochClock {
	return &EpochClock{Genesis: genesis, Duration: duration, now: time.Now}
}

func (c *EpochClock) Epoch() peer.ChainEpoch {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	if c.Duration <= 0 {
		return 0
	}
	elapsed := now().Sub(c.Genesis)
	if elapsed < 0 {
		return 0
	}
	return peer.ChainEpoch(elapsed / c.Duration)
}
