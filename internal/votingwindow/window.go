// Package votingwindow decides whether a talk currently accepts questions and votes.
package votingwindow

import (
	"time"

	"github.com/connect-event/backend/internal/models"
)

// DefaultGrace is cut from the end of a talk's scheduled slot so speakers have
// time to answer before the talk ends.
const DefaultGrace = 10 * time.Minute

// ReasonCode tells why voting is closed.
type ReasonCode string

const (
	ReasonNone       ReasonCode = ""
	ReasonNotStarted ReasonCode = "not_started"
	ReasonEnded      ReasonCode = "ended"
)

// Reason carries the closed-window cause and the boundary that was crossed.
type Reason struct {
	Code     ReasonCode `json:"code,omitempty"`
	Boundary time.Time  `json:"boundary,omitempty"`
}

// Window is the effective voting interval, inclusive at both ends.
type Window struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	IsDefault bool      `json:"is_default"`
}

// Decision is the outcome of evaluating a talk at an instant.
// Window is nil when the talk has no restriction at all.
type Decision struct {
	Open   bool    `json:"open"`
	Reason Reason  `json:"reason"`
	Window *Window `json:"window,omitempty"`
}

// Effective returns the window that governs talk: the admin override when both
// bounds are set, else the first complete slot shortened by grace, else nil.
func Effective(talk *models.Talk, grace time.Duration) *Window {
	if talk.VotingStartsAt != nil && talk.VotingEndsAt != nil {
		return &Window{Start: *talk.VotingStartsAt, End: *talk.VotingEndsAt}
	}
	for _, slot := range talk.Slots {
		if slot.StartsAt == nil || slot.EndsAt == nil {
			continue
		}
		return &Window{Start: *slot.StartsAt, End: slot.EndsAt.Add(-grace), IsDefault: true}
	}
	return nil
}

// Evaluate applies the window policy to talk at now. It performs no I/O and must
// be called on every attempt, never cached.
func Evaluate(talk *models.Talk, now time.Time, grace time.Duration) Decision {
	w := Effective(talk, grace)
	if w == nil {
		return Decision{Open: true}
	}
	if now.Before(w.Start) {
		return Decision{Window: w, Reason: Reason{Code: ReasonNotStarted, Boundary: w.Start}}
	}
	if now.After(w.End) {
		return Decision{Window: w, Reason: Reason{Code: ReasonEnded, Boundary: w.End}}
	}
	return Decision{Open: true, Window: w}
}
