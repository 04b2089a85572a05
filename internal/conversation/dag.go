package conversation

import (
	"slices"
	"sort"

	"github.com/golang-collections/collections/queue"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/model"
)

// Insertion describes what adding an interaction did to the history.
type Insertion struct {
	// Duplicate is set when the interaction was already known; nothing
	// else changed.
	Duplicate bool
	// Placed lists the interactions that entered the display list, the
	// added one first when it could be placed, followed by any buffered
	// interactions it unblocked.
	Placed []*model.Interaction
	// Updated lists existing interactions changed as a side effect,
	// such as edit targets.
	Updated []*model.Interaction
	// NewLeaf is set when the added interaction became the newest entry.
	NewLeaf bool
	// Buffered is set when the added interaction could not be placed yet.
	Buffered bool
}

// AddSwarmElement merges a DAG message into the history. Messages may
// arrive in any order; each is placed next to a parent or child already
// in the display list, or buffered until one arrives. Adding a message
// twice is a no-op.
func (c *Conversation) AddSwarmElement(i *model.Interaction) Insertion {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res Insertion
	if _, ok := c.messages[i.MessageID]; ok {
		res.Duplicate = true
		return res
	}
	c.messages[i.MessageID] = i

	c.roots.Remove(i.MessageID)
	for _, p := range parentsOf(i) {
		if _, known := c.messages[p]; !known {
			c.roots.Insert(p)
		}
	}

	c.applyEdit(i, &res)
	if edit, ok := c.pendingEdits[i.MessageID]; ok {
		delete(c.pendingEdits, i.MessageID)
		c.applyEdit(edit, &res)
	}

	leaf, ok := c.place(i)
	if !ok {
		c.unattached = append(c.unattached, i)
		res.Buffered = true
		c.logger.Warn("message not attached to history",
			zap.String("message", i.MessageID),
			zap.String("parent", i.ParentID),
			zap.Int("unattached", len(c.unattached)),
		)
		return res
	}
	res.NewLeaf = leaf
	c.placed(i, leaf, &res)
	c.drainUnattached(&res)
	return res
}

// place inserts i into the display list. It reports whether i was placed
// and whether it became the tail.
func (c *Conversation) place(i *model.Interaction) (leaf, ok bool) {
	n := len(c.history)
	if n == 0 || (i.ParentID != "" && c.history[n-1].MessageID == i.ParentID) {
		c.history = append(c.history, i)
		return true, true
	}
	for idx, h := range c.history {
		if h.ParentID == i.MessageID {
			c.history = slices.Insert(c.history, idx, i)
			return false, true
		}
	}
	if i.ParentID == "" {
		return false, false
	}
	for idx := n - 1; idx >= 0; idx-- {
		if c.history[idx].MessageID == i.ParentID {
			c.history = slices.Insert(c.history, idx+1, i)
			return idx+1 == n, true
		}
	}
	return false, false
}

// drainUnattached retries buffered messages until a full pass places none.
func (c *Conversation) drainUnattached(res *Insertion) {
	for progress := true; progress && len(c.unattached) > 0; {
		progress = false
		rest := c.unattached[:0]
		for _, u := range c.unattached {
			leaf, ok := c.place(u)
			if !ok {
				rest = append(rest, u)
				continue
			}
			progress = true
			if leaf {
				res.NewLeaf = true
			}
			c.placed(u, leaf, res)
		}
		for idx := len(rest); idx < len(c.unattached); idx++ {
			c.unattached[idx] = nil
		}
		c.unattached = rest
	}
}

// placed settles the read state of a newly placed interaction.
func (c *Conversation) placed(i *model.Interaction, leaf bool, res *Insertion) {
	res.Placed = append(res.Placed, i)
	if !i.Read {
		switch {
		case leaf && c.visible:
			i.Read = true
		case !leaf && c.lastRead != "" && c.precedesLastRead(i):
			i.Read = true
		}
	}
	if leaf && c.visible {
		c.lastRead = i.ID
	}
	if i.CountsUnread() {
		c.unread++
	}
}

// precedesLastRead reports whether i sits before the read pointer in the
// display list.
func (c *Conversation) precedesLastRead(i *model.Interaction) bool {
	seen := false
	for _, h := range c.history {
		if h == i {
			seen = true
		}
		if h.ID == c.lastRead {
			return seen && h != i
		}
	}
	return false
}

func (c *Conversation) applyEdit(edit *model.Interaction, res *Insertion) {
	target := edit.EditTarget()
	if target == "" {
		return
	}
	orig, ok := c.messages[target]
	if !ok {
		if prev, queued := c.pendingEdits[target]; !queued || !prev.Timestamp.After(edit.Timestamp) {
			c.pendingEdits[target] = edit
		}
		return
	}
	if _, isText := orig.Payload.(model.Text); !isText {
		return
	}
	orig.Payload = model.Text{Body: edit.Text(), Edited: true}
	res.Updated = append(res.Updated, orig)
}

// Roots returns the ids referenced as parents but not yet received,
// sorted. Back-fill requests start from these.
func (c *Conversation) Roots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.roots.Len())
	c.roots.Do(func(v interface{}) {
		out = append(out, v.(string))
	})
	sort.Strings(out)
	return out
}

// Unattached is the number of received messages not yet placed.
func (c *Conversation) Unattached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.unattached)
}

// IsLoaded reports whether the history is complete: at least one message
// is known and no parent is missing.
func (c *Conversation) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLoaded()
}

// Legacy conversations never have roots.
func (c *Conversation) isLoaded() bool {
	return len(c.messages) > 0 && c.roots.Len() == 0
}

// IsAfter reports whether candidate is causally after ref. An empty ref
// precedes everything. Legacy conversations compare timestamps.
func (c *Conversation) IsAfter(ref, candidate string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAfter(ref, candidate)
}

func (c *Conversation) isAfter(ref, candidate string) bool {
	if ref == "" {
		return true
	}
	if ref == candidate {
		return false
	}
	if !c.IsSwarm() {
		r, ok1 := c.messages[ref]
		cand, ok2 := c.messages[candidate]
		return ok1 && ok2 && cand.Timestamp.After(r.Timestamp)
	}

	seen := map[string]bool{candidate: true}
	q := queue.New()
	q.Enqueue(candidate)
	for q.Len() > 0 {
		m, ok := c.messages[q.Dequeue().(string)]
		if !ok {
			continue
		}
		for _, p := range parentsOf(m) {
			if p == ref {
				return true
			}
			if !seen[p] {
				seen[p] = true
				q.Enqueue(p)
			}
		}
	}
	return false
}

// UpdateStatus applies a delivery status reported for a message. For a
// displayed status from a member, the member's last-displayed pointer
// only moves forward. It returns the interaction when its own status
// changed.
func (c *Conversation) UpdateStatus(id, member string, status model.Status) (*model.Interaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.messages[id]
	if !ok {
		i, ok = c.byDaemon[id]
	}
	if !ok {
		return nil, false
	}

	moved := false
	if status == model.StatusDisplayed && member != "" {
		if cur := c.lastDisplayed[member]; cur != i.ID && c.isAfter(cur, i.ID) {
			c.lastDisplayed[member] = i.ID
			moved = true
		}
	}
	if i.Kind() == model.KindDataTransfer {
		if i.Status == status {
			return nil, moved
		}
		i.Status = status
		return i, moved
	}
	if i.IsIncoming() || statusRank(status) <= statusRank(i.Status) {
		return nil, moved
	}
	i.Status = status
	return i, moved
}

func statusRank(s model.Status) int {
	switch s {
	case model.StatusSending:
		return 1
	case model.StatusFailure, model.StatusCanceled:
		return 2
	case model.StatusSuccess:
		return 3
	case model.StatusDisplayed:
		return 4
	default:
		return 0
	}
}

func parentsOf(i *model.Interaction) []string {
	if len(i.Parents) > 0 {
		return i.Parents
	}
	if i.ParentID != "" {
		return []string{i.ParentID}
	}
	return nil
}
