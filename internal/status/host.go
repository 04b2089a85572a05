package status

import "github.com/matheus3301/ringcore/internal/bus"

// State represents the host runtime state.
type State string

const (
	Booting      State = "BOOTING"
	Connecting   State = "CONNECTING"
	Syncing      State = "SYNCING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Error        State = "ERROR"
)

// KindHostStatus is published on every host state change.
const KindHostStatus = "host.status_changed"

// HostTransitions: Syncing loads accounts from the daemon, Degraded means
// at least one account failed to register.
var HostTransitions = Table[State]{
	Booting:      {Connecting, Error},
	Connecting:   {Syncing, Reconnecting, Error},
	Syncing:      {Ready, Reconnecting, Degraded, Error},
	Ready:        {Reconnecting, Degraded, Error},
	Reconnecting: {Connecting, Degraded, Error},
	Degraded:     {Connecting, Reconnecting, Ready, Error},
	Error:        {Booting},
}

// Host is the lifecycle of the engine's connection to the daemon.
type Host = Machine[State]

// NewHost creates a host machine starting in Booting state.
func NewHost(b *bus.Bus) *Host {
	return NewMachine(Booting, HostTransitions, b, KindHostStatus, "")
}

// HostChange is the payload of KindHostStatus events.
type HostChange = Change[State]
