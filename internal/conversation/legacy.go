package conversation

import (
	"slices"
	"sort"

	"github.com/matheus3301/ringcore/internal/model"
)

// AddInteraction inserts an interaction into a timestamp-ordered history.
// Interactions carrying a daemon id already present are duplicates.
func (c *Conversation) AddInteraction(i *model.Interaction) Insertion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addInteraction(i, true)
}

// Restore loads persisted interactions. Their read flags are kept as
// stored and the read pointer does not move. It returns how many were new.
func (c *Conversation) Restore(items []*model.Interaction) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, i := range items {
		if res := c.addInteraction(i, false); !res.Duplicate {
			n++
		}
	}
	return n
}

func (c *Conversation) addInteraction(i *model.Interaction, live bool) Insertion {
	var res Insertion
	if _, ok := c.messages[i.ID]; ok {
		res.Duplicate = true
		return res
	}
	if i.DaemonID != "" {
		if _, ok := c.byDaemon[i.DaemonID]; ok {
			res.Duplicate = true
			return res
		}
		c.byDaemon[i.DaemonID] = i
	}
	c.messages[i.ID] = i

	idx := sort.Search(len(c.history), func(k int) bool {
		return c.history[k].Timestamp.After(i.Timestamp)
	})
	c.history = slices.Insert(c.history, idx, i)
	res.NewLeaf = idx == len(c.history)-1
	if !live {
		res.Placed = append(res.Placed, i)
		if i.CountsUnread() {
			c.unread++
		}
		return res
	}
	c.placed(i, res.NewLeaf, &res)
	return res
}

// AckOutgoing records the daemon id assigned to a locally created
// interaction and updates its status.
func (c *Conversation) AckOutgoing(id, daemonID string, status model.Status) (*model.Interaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.messages[id]
	if !ok {
		return nil, false
	}
	if daemonID != "" && i.DaemonID != daemonID {
		i.DaemonID = daemonID
		c.byDaemon[daemonID] = i
	}
	i.Status = status
	return i, true
}
