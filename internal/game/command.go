package game

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome tags whether a command changed the state.
type Outcome int

const (
	Accepted Outcome = iota
	Ignored
)

func (o Outcome) String() string {
	if o == Accepted {
		return "accepted"
	}
	return "ignored"
}

// Reason explains an ignored command.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoActiveQuestion Reason = "no active question"
	ReasonRoundClosed      Reason = "round already has a positive award"
	ReasonAlreadyPenalized Reason = "team already penalized this round"
	ReasonUnknownTeam      Reason = "unknown team"
	ReasonInvalidDelta     Reason = "delta must be non-zero"
	ReasonEmptyLog         Reason = "adjustment log is empty"
	ReasonNoTeams          Reason = "no teams"
	ReasonUnknownCategory  Reason = "unknown category"
	ReasonUnknownQuestion  Reason = "unknown question"
)

// Changes is the dirty tag returned with every accepted command.
type Changes uint8

const (
	// ChangeMeta covers title, description, time limit, theme and visibility.
	ChangeMeta Changes = 1 << iota
	// ChangeBoard covers categories, teams and the adjustment log.
	ChangeBoard
)

// Dirty reports whether the quiz document needs saving.
func (c Changes) Dirty() bool { return c != 0 }

// Result is what Dispatch returns for a command.
type Result struct {
	Outcome Outcome
	Reason  Reason
	Changes Changes

	spin bool
}

func accepted(c Changes) Result { return Result{Outcome: Accepted, Changes: c} }

func ignored(r Reason) Result { return Result{Outcome: Ignored, Reason: r} }

// Command is one mutation of the game state. Commands are pure with respect to
// the State they receive; timers and network calls belong to the Store.
type Command interface {
	apply(s *State, e *env) Result
}

// env carries the non-deterministic inputs a command may need.
type env struct {
	now time.Time
	rng *rand.Rand
}

func (e *env) newID() string { return uuid.NewString() }

// shortID is a timestamp plus random suffix; unique enough within one roster.
func (e *env) shortID() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	b.WriteString(strconv.FormatInt(e.now.UnixMilli(), 36))
	b.WriteByte('-')
	for i := 0; i < 6; i++ {
		b.WriteByte(alphabet[e.rng.Intn(len(alphabet))])
	}
	return b.String()
}
