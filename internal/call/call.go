package call

import (
	"time"

	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/status"
)

// State is the lifecycle state of a single call.
type State string

const (
	StateNone       State = "NONE"
	StateSearching  State = "SEARCHING"
	StateConnecting State = "CONNECTING"
	StateRinging    State = "RINGING"
	StateCurrent    State = "CURRENT"
	StateHold       State = "HOLD"
	StateUnhold     State = "UNHOLD"
	StateInactive   State = "INACTIVE"
	StateHungup     State = "HUNGUP"
	StateBusy       State = "BUSY"
	StateFailure    State = "FAILURE"
	StateOver       State = "OVER"
)

// ParseState maps the daemon's call state names. Unknown names map to
// StateNone.
func ParseState(s string) State {
	switch s {
	case "INCOMING":
		return StateRinging
	case "SEARCHING", "CONNECTING", "RINGING", "CURRENT", "HOLD", "UNHOLD",
		"INACTIVE", "HUNGUP", "BUSY", "FAILURE", "OVER":
		return State(s)
	default:
		return StateNone
	}
}

// IsTerminal reports whether the call has ended.
func (s State) IsTerminal() bool {
	switch s {
	case StateHungup, StateBusy, StateFailure, StateOver:
		return true
	}
	return false
}

// Transitions is the nominal call lifecycle. The daemon is authoritative,
// so the engine applies transitions outside the table too and only logs
// them.
var Transitions = status.Table[State]{
	StateNone:       {StateSearching, StateConnecting, StateRinging, StateFailure, StateOver},
	StateSearching:  {StateConnecting, StateRinging, StateFailure, StateHungup, StateOver},
	StateConnecting: {StateRinging, StateCurrent, StateHungup, StateBusy, StateFailure, StateOver},
	StateRinging:    {StateCurrent, StateHungup, StateBusy, StateFailure, StateOver},
	StateCurrent:    {StateHold, StateInactive, StateHungup, StateFailure, StateOver},
	StateHold:       {StateUnhold, StateCurrent, StateHungup, StateFailure, StateOver},
	StateUnhold:     {StateCurrent, StateHold, StateHungup, StateFailure, StateOver},
	StateInactive:   {StateCurrent, StateHold, StateHungup, StateFailure, StateOver},
	StateHungup:     {StateOver},
	StateBusy:       {StateOver},
	StateFailure:    {StateOver},
}

// Call is a single peer-to-peer media session.
type Call struct {
	ID             string
	AccountID      string
	ConversationID string // canonical URI of the conversation the call belongs to
	Peer           *model.Contact
	Direction      model.Direction
	State          State
	// ConfID names the multi-party conference holding the call, empty
	// while the call stands alone.
	ConfID     string
	AudioMuted bool
	VideoMuted bool
	Created    time.Time
	Started    time.Time
	Ended      time.Time
	Code       int
}

// Duration is the time spent connected; zero for calls never answered.
func (c *Call) Duration() time.Duration {
	if c.Started.IsZero() {
		return 0
	}
	end := c.Ended
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(c.Started)
}

// Missed reports whether an incoming call ended without being answered.
func (c *Call) Missed() bool {
	return c.Direction == model.Incoming && c.Started.IsZero()
}

// Record is the history entry describing a finished call.
func (c *Call) Record() model.CallRecord {
	return model.CallRecord{
		Direction: c.Direction,
		Duration:  c.Duration().Truncate(time.Millisecond),
		ConfID:    c.ConfID,
		Missed:    c.Missed(),
	}
}

// Participant is the live layout and media state of one conference
// participant as reported by the daemon.
type Participant struct {
	URI        string
	Device     string
	Active     bool
	Recording  bool
	AudioMuted bool
	VideoMuted bool
	X, Y, W, H int
}

// Conference groups calls. A call that is not part of a multi-party
// conference is wrapped in a simple conference sharing its id, so every
// live call belongs to exactly one conference.
type Conference struct {
	ID           string
	State        string
	Members      []*Call
	Participants []Participant
}

// IsSimple reports whether the conference only wraps a standalone call.
func (c *Conference) IsSimple() bool {
	return len(c.Members) == 1 && c.Members[0].ID == c.ID
}

func (c *Conference) indexOf(callID string) int {
	for idx, m := range c.Members {
		if m.ID == callID {
			return idx
		}
	}
	return -1
}

func (c *Conference) remove(callID string) bool {
	idx := c.indexOf(callID)
	if idx < 0 {
		return false
	}
	c.Members = append(c.Members[:idx], c.Members[idx+1:]...)
	return true
}

// Maximized returns the URI of the participant shown full screen, if any.
func (c *Conference) Maximized() string {
	for _, p := range c.Participants {
		if p.Active {
			return p.URI
		}
	}
	return ""
}

// Recording reports whether any participant is recording.
func (c *Conference) Recording() bool {
	for _, p := range c.Participants {
		if p.Recording {
			return true
		}
	}
	return false
}
