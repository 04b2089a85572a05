package uri

import (
	"regexp"
	"strings"
)

// Schemes understood by the engine. Stored with the trailing colon so
// they can be prepended directly.
const (
	SwarmScheme = "swarm:"
	JamiScheme  = "jami:"
	RingScheme  = "ring:"
	SIPScheme   = "sip:"
	SIPSScheme  = "sips:"
)

// Kind classifies an address.
type Kind int

const (
	// Bare is an unqualified string that is neither an id nor an address.
	Bare Kind = iota
	// HexID is a 40 hex digit peer id.
	HexID
	// Swarm is a content-addressed conversation id.
	Swarm
	// HostPort is a user@host[:port] or host:port style address.
	HostPort
)

func (k Kind) String() string {
	switch k {
	case HexID:
		return "hex_id"
	case Swarm:
		return "swarm"
	case HostPort:
		return "host_port"
	default:
		return "bare"
	}
}

var (
	addrRegexp = regexp.MustCompile(`^(?:([a-zA-Z][a-zA-Z0-9+.-]*):)?(?:([^@:;/]+)@)?([^@:;/]+)(?::(\d{1,5}))?(?:[;/].*)?$`)
	hexRegexp  = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

// URI is a parsed peer or conversation address.
type URI struct {
	Scheme   string // with trailing colon, empty when absent
	Username string
	Host     string
	Port     string

	raw string
}

// Parse splits an address into its components. It never fails: input that
// does not look like an address is kept as a bare host.
func Parse(s string) URI {
	s = strings.TrimSpace(s)
	u := URI{raw: s}
	m := addrRegexp.FindStringSubmatch(s)
	if m == nil {
		u.Host = s
		return u
	}
	if m[1] != "" {
		u.Scheme = strings.ToLower(m[1]) + ":"
	}
	u.Username = m[2]
	u.Host = m[3]
	u.Port = m[4]
	// "host:5060" parses the host as a scheme; undo that.
	if u.Scheme != "" && !knownScheme(u.Scheme) && u.Username == "" && u.Port == "" && isDigits(u.Host) {
		u.Port = u.Host
		u.Host = strings.TrimSuffix(u.Scheme, ":")
		u.Scheme = ""
	}
	return u
}

// FromSwarmID returns the URI of a swarm conversation.
func FromSwarmID(id string) URI {
	return URI{Scheme: SwarmScheme, Host: id, raw: SwarmScheme + id}
}

// Canonical is shorthand for Parse(s).RawURI().
func Canonical(s string) string {
	return Parse(s).RawURI()
}

// Kind classifies the address.
func (u URI) Kind() Kind {
	switch {
	case u.Scheme == SwarmScheme:
		return Swarm
	case u.IsHexID():
		return HexID
	case u.Username != "" || u.Port != "":
		return HostPort
	default:
		return Bare
	}
}

// IsSwarm reports whether the URI names a swarm conversation.
func (u URI) IsSwarm() bool { return u.Scheme == SwarmScheme }

// IsHexID reports whether the URI is a 40 hex digit peer id.
func (u URI) IsHexID() bool {
	if u.Scheme == SwarmScheme || u.Username != "" || u.Port != "" {
		return false
	}
	switch u.Scheme {
	case "", JamiScheme, RingScheme:
		return hexRegexp.MatchString(u.Host)
	}
	return false
}

// IsSIP reports whether the address routes through a SIP account rather
// than the distributed network.
func (u URI) IsSIP() bool {
	k := u.Kind()
	return k != Swarm && k != HexID
}

// RawID is the identifying part of the address: the user when present,
// else the host.
func (u URI) RawID() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Host
}

// RawURI is the canonical form used as the only map key for contacts and
// conversations: scheme-qualified for hex and swarm ids, verbatim otherwise.
func (u URI) RawURI() string {
	switch {
	case u.IsSwarm():
		return SwarmScheme + strings.ToLower(u.Host)
	case u.IsHexID():
		return JamiScheme + strings.ToLower(u.Host)
	case u.raw != "":
		return u.raw
	default:
		return u.String()
	}
}

// String rebuilds the address from its components.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	if u.Username != "" {
		b.WriteString(u.Username)
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	if u.Port != "" {
		b.WriteByte(':')
		b.WriteString(u.Port)
	}
	return b.String()
}

// IsEmpty reports whether nothing was parsed.
func (u URI) IsEmpty() bool { return u.Host == "" && u.Username == "" }

func knownScheme(s string) bool {
	switch s {
	case SwarmScheme, JamiScheme, RingScheme, SIPScheme, SIPSScheme:
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
