package conversation

// Mode is the membership policy of a conversation.
type Mode int

const (
	ModeOneToOne Mode = iota
	ModeAdminInvitesOnly
	ModeInvitesOnly
	ModePublic
	// ModeLegacy marks a conversation keyed by a peer rather than a swarm.
	ModeLegacy
	// ModeRequest is a swarm the local user was invited to but has not joined.
	ModeRequest
	// ModeSyncing is a joined swarm whose history has not arrived yet.
	ModeSyncing
)

// ModeFromDaemon maps the daemon's numeric swarm mode.
func ModeFromDaemon(v int) Mode {
	switch v {
	case 0:
		return ModeOneToOne
	case 1:
		return ModeAdminInvitesOnly
	case 2:
		return ModeInvitesOnly
	case 3:
		return ModePublic
	default:
		return ModeSyncing
	}
}

func (m Mode) String() string {
	switch m {
	case ModeOneToOne:
		return "one_to_one"
	case ModeAdminInvitesOnly:
		return "admin_invites_only"
	case ModeInvitesOnly:
		return "invites_only"
	case ModePublic:
		return "public"
	case ModeLegacy:
		return "legacy"
	case ModeRequest:
		return "request"
	case ModeSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}
