package model

import "time"

// TrustRequest is an incoming contact or conversation invitation.
type TrustRequest struct {
	AccountID string
	From      string // canonical URI of the sender
	// ConversationID is set when the request invites to a swarm.
	ConversationID string
	Received       time.Time
	Profile        Profile
}

// IsSwarm reports whether accepting the request joins a swarm.
func (r *TrustRequest) IsSwarm() bool { return r.ConversationID != "" }
