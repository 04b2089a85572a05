package api

import (
	"fmt"
	"time"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/outbox"
	"github.com/matheus3301/ringcore/internal/status"
	"github.com/matheus3301/ringcore/internal/store"
)

// The view functions flatten engine values into structpb-compatible
// maps. Times are unix milliseconds, zero when unset.

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func summaryView(s conversation.Summary) map[string]any {
	v := map[string]any{
		"account":     s.AccountID,
		"key":         s.Key,
		"mode":        s.Mode.String(),
		"swarm":       s.Swarm,
		"members":     anySlice(s.Members),
		"title":       s.Title,
		"unread":      s.Unread,
		"last_event":  millis(s.LastEvent),
		"loaded":      s.Loaded,
		"conferences": anySlice(s.Conferences),
		"request":     s.Request,
	}
	if s.Last != nil {
		v["last"] = interactionView(s.Last)
	}
	return v
}

func interactionView(i *model.Interaction) map[string]any {
	v := map[string]any{
		"id":        i.ID,
		"kind":      string(i.Kind()),
		"author":    i.Author,
		"timestamp": millis(i.Timestamp),
		"read":      i.Read,
		"status":    string(i.Status),
		"daemon_id": i.DaemonID,
	}
	if i.IsSwarm() {
		v["message_id"] = i.MessageID
		v["parent_id"] = i.ParentID
	}
	switch p := i.Payload.(type) {
	case model.Text:
		v["body"] = p.Body
		v["edited"] = p.Edited
		v["only_emoji"] = model.OnlyEmoji(p.Body)
	case model.CallRecord:
		v["direction"] = string(p.Direction)
		v["duration_ms"] = p.Duration.Milliseconds()
		v["conference"] = p.ConfID
		v["missed"] = p.Missed
	case model.ContactEvent:
		v["event"] = string(p.Event)
		v["peer"] = p.Peer
	case model.DataTransfer:
		v["file_id"] = p.FileID
		v["name"] = p.DisplayName
		v["total_size"] = p.TotalSize
		v["progress"] = p.Progress
	}
	return v
}

func contactView(c *model.Contact) map[string]any {
	username, resolved := c.Username()
	p := c.Profile()
	return map[string]any{
		"uri":          c.Key(),
		"name":         c.DisplayName(),
		"username":     username,
		"resolved":     resolved,
		"display_name": p.DisplayName,
		"online":       c.Online(),
		"status":       string(c.Status()),
		"added":        millis(c.AddedAt()),
		"conversation": c.ConversationURI(),
	}
}

func requestView(r model.TrustRequest) map[string]any {
	return map[string]any{
		"account":      r.AccountID,
		"from":         r.From,
		"conversation": r.ConversationID,
		"received":     millis(r.Received),
		"name":         r.Profile.DisplayName,
	}
}

func callView(c call.Call) map[string]any {
	v := map[string]any{
		"id":           c.ID,
		"account":      c.AccountID,
		"conversation": c.ConversationID,
		"direction":    string(c.Direction),
		"state":        string(c.State),
		"conference":   c.ConfID,
		"audio_muted":  c.AudioMuted,
		"video_muted":  c.VideoMuted,
		"created":      millis(c.Created),
		"started":      millis(c.Started),
		"ended":        millis(c.Ended),
		"code":         c.Code,
		"missed":       c.Missed(),
	}
	if c.Peer != nil {
		v["peer"] = c.Peer.Key()
		v["peer_name"] = c.Peer.DisplayName()
	}
	return v
}

func conferenceView(s call.ConferenceSnapshot) map[string]any {
	calls := make([]any, 0, len(s.Calls))
	for _, c := range s.Calls {
		calls = append(calls, callView(c))
	}
	parts := make([]any, 0, len(s.Participants))
	for _, p := range s.Participants {
		parts = append(parts, map[string]any{
			"uri":         p.URI,
			"device":      p.Device,
			"active":      p.Active,
			"recording":   p.Recording,
			"audio_muted": p.AudioMuted,
			"video_muted": p.VideoMuted,
		})
	}
	return map[string]any{
		"id":           s.ID,
		"state":        s.State,
		"simple":       s.Simple,
		"calls":        calls,
		"participants": parts,
		"maximized":    s.Maximized,
		"recording":    s.Recording,
	}
}

func searchView(r store.SearchResult) map[string]any {
	i := r.Interaction
	return map[string]any{
		"account":      i.AccountID,
		"conversation": i.ConversationID,
		"id":           i.InteractionID,
		"author":       i.Author,
		"kind":         i.Kind,
		"body":         i.Body,
		"timestamp":    i.Timestamp,
		"snippet":      r.Snippet,
	}
}

// payloadView renders the payload of any event published on the bus.
func payloadView(p any) map[string]any {
	switch p := p.(type) {
	case nil:
		return map[string]any{}
	case account.ListChanged:
		return map[string]any{"account": p.AccountID, "count": p.Count}
	case account.ConversationEvent:
		return summaryView(p.Summary)
	case account.InteractionEvent:
		return map[string]any{
			"account":      p.AccountID,
			"conversation": p.ConversationID,
			"swarm":        p.Swarm,
			"interaction":  interactionView(p.Interaction),
		}
	case account.HistoryCleared:
		return map[string]any{"account": p.AccountID, "conversation": p.ConversationID}
	case account.ReadMoved:
		return map[string]any{"account": p.AccountID, "conversation": p.ConversationID, "message_id": p.MessageID}
	case account.ContactUpdated:
		v := contactView(p.Contact)
		v["account"] = p.AccountID
		return v
	case account.UnreadChanged:
		return map[string]any{"account": p.AccountID, "total": p.Total}
	case account.RegistrationChanged:
		return map[string]any{"account": p.AccountID, "state": p.State, "code": p.Code}
	case call.Call:
		return callView(p)
	case call.ConferenceSnapshot:
		return conferenceView(p)
	case status.HostChange:
		return map[string]any{"from": string(p.From), "to": string(p.To)}
	case outbox.SendResult:
		return map[string]any{
			"client_msg_id": p.ClientMsgID,
			"account":       p.AccountID,
			"conversation":  p.ConversationID,
			"daemon_msg_id": p.DaemonMsgID,
			"error":         p.Error,
		}
	default:
		return map[string]any{"value": fmt.Sprint(p)}
	}
}
