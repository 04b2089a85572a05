package conversation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/ringcore/internal/model"
)

const peerKey = "jami:00000000000000000000000000000000000000aa"

func msg(id, parent string, parents ...string) *model.Interaction {
	return &model.Interaction{
		ID:        id,
		MessageID: id,
		ParentID:  parent,
		Parents:   parents,
		Author:    peerKey,
		Payload:   model.Text{Body: id},
	}
}

func chain(n int) []*model.Interaction {
	out := make([]*model.Interaction, n)
	parent := ""
	for k := range out {
		id := fmt.Sprintf("m%02d", k)
		out[k] = msg(id, parent)
		parent = id
	}
	return out
}

func order(c *Conversation) []string {
	var out []string
	for _, i := range c.History() {
		out = append(out, i.ID)
	}
	return out
}

func newSwarm() *Conversation {
	return NewSwarm("acc", "c0ffee", ModeInvitesOnly, nil)
}

func TestAddSwarmElementOutOfOrder(t *testing.T) {
	c := newSwarm()
	a, b, cc := msg("A", ""), msg("B", "A"), msg("C", "B")

	c.AddSwarmElement(a)
	c.AddSwarmElement(cc)
	res := c.AddSwarmElement(b)

	assert.Equal(t, []string{"A", "B", "C"}, order(c))
	assert.False(t, res.Buffered)
	assert.Equal(t, []*model.Interaction{b, cc}, res.Placed)
	assert.Equal(t, 0, c.Unattached())
	assert.True(t, c.IsLoaded())
}

func TestAddSwarmElementOrderings(t *testing.T) {
	msgs := chain(10)
	want := make([]string, len(msgs))
	for k, m := range msgs {
		want[k] = m.ID
	}

	forward := append([]*model.Interaction(nil), msgs...)
	reverse := make([]*model.Interaction, len(msgs))
	for k, m := range msgs {
		reverse[len(msgs)-1-k] = m
	}
	orders := map[string][]*model.Interaction{"forward": forward, "reverse": reverse}
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 20; n++ {
		shuffled := append([]*model.Interaction(nil), msgs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		orders[fmt.Sprintf("random-%d", n)] = shuffled
	}

	for name, in := range orders {
		t.Run(name, func(t *testing.T) {
			c := newSwarm()
			for _, m := range in {
				c.AddSwarmElement(m.Clone())
			}
			assert.Equal(t, want, order(c))
			assert.Equal(t, 0, c.Unattached())
			assert.Empty(t, c.Roots())
			assert.True(t, c.IsLoaded())
		})
	}
}

func TestAddSwarmElementForkAndMerge(t *testing.T) {
	msgs := []*model.Interaction{
		msg("A", ""),
		msg("B", "A"),
		msg("C", "A"),
		msg("D", "B", "B", "C"),
		msg("E", "D"),
	}
	rng := rand.New(rand.NewSource(11))
	for n := 0; n < 30; n++ {
		in := append([]*model.Interaction(nil), msgs...)
		rng.Shuffle(len(in), func(i, j int) { in[i], in[j] = in[j], in[i] })

		c := newSwarm()
		for _, m := range in {
			c.AddSwarmElement(m.Clone())
		}
		got := order(c)
		require.Len(t, got, len(msgs))
		pos := make(map[string]int, len(got))
		for k, id := range got {
			pos[id] = k
		}
		for _, m := range msgs {
			if m.ParentID != "" {
				assert.Less(t, pos[m.ParentID], pos[m.ID], "%s must follow its parent in %v", m.ID, got)
			}
		}
	}
}

func TestAddSwarmElementIdempotent(t *testing.T) {
	c := newSwarm()
	for _, m := range chain(4) {
		c.AddSwarmElement(m)
	}
	before := order(c)
	unread := c.Unread()

	res := c.AddSwarmElement(msg("m02", "m01"))
	assert.True(t, res.Duplicate)
	assert.Empty(t, res.Placed)
	assert.Equal(t, before, order(c))
	assert.Equal(t, unread, c.Unread())
}

func TestRootsTrackMissingParents(t *testing.T) {
	c := newSwarm()
	assert.False(t, c.IsLoaded(), "empty swarm is not loaded")

	c.AddSwarmElement(msg("D", "C"))
	assert.Equal(t, []string{"C"}, c.Roots())
	assert.False(t, c.IsLoaded())

	c.AddSwarmElement(msg("C", "B"))
	assert.Equal(t, []string{"B"}, c.Roots())

	c.AddSwarmElement(msg("B", ""))
	assert.Empty(t, c.Roots())
	assert.True(t, c.IsLoaded())
}

func TestUnattachedBuffered(t *testing.T) {
	c := newSwarm()
	c.AddSwarmElement(msg("A", ""))
	res := c.AddSwarmElement(msg("C", "B"))
	assert.True(t, res.Buffered)
	assert.Equal(t, 1, c.Unattached())
	assert.Equal(t, []string{"A"}, order(c))

	res = c.AddSwarmElement(msg("B", "A"))
	assert.True(t, res.NewLeaf)
	assert.Equal(t, 0, c.Unattached())
	assert.Equal(t, []string{"A", "B", "C"}, order(c))
}

func TestNewLeafReadWhenVisible(t *testing.T) {
	c := newSwarm()
	c.AddSwarmElement(msg("A", ""))
	assert.Equal(t, 1, c.Unread())

	c.SetVisible(true)
	res := c.AddSwarmElement(msg("B", "A"))
	assert.True(t, res.NewLeaf)
	assert.True(t, res.Placed[0].Read)
	assert.Equal(t, "B", c.LastRead())
	assert.Equal(t, 1, c.Unread())

	changed, last := c.MarkAllRead()
	assert.Len(t, changed, 1)
	assert.Equal(t, "B", last)
	assert.Equal(t, 0, c.Unread())
}

func TestBackfilledMessagesBeforeReadPointerAreRead(t *testing.T) {
	c := newSwarm()
	c.SetLastRead("C")
	c.AddSwarmElement(msg("C", "B"))
	res := c.AddSwarmElement(msg("B", "A"))
	require.Len(t, res.Placed, 1)
	assert.True(t, res.Placed[0].Read)
	assert.Equal(t, 1, c.Unread(), "only C counts")
}

func TestIsAfter(t *testing.T) {
	c := newSwarm()
	for _, m := range []*model.Interaction{
		msg("A", ""),
		msg("B", "A"),
		msg("C", "A"),
		msg("D", "B", "B", "C"),
	} {
		c.AddSwarmElement(m)
	}
	assert.True(t, c.IsAfter("A", "D"))
	assert.True(t, c.IsAfter("C", "D"), "second merge parent is an ancestor")
	assert.False(t, c.IsAfter("D", "A"))
	assert.False(t, c.IsAfter("B", "C"), "siblings are unordered")
	assert.False(t, c.IsAfter("A", "A"))
	assert.True(t, c.IsAfter("", "A"))
}

func TestUpdateStatusLastDisplayedMonotonic(t *testing.T) {
	c := newSwarm()
	for _, m := range chain(3) {
		m.Author = ""
		m.Status = model.StatusSending
		c.AddSwarmElement(m)
	}

	changed, moved := c.UpdateStatus("m02", peerKey, model.StatusDisplayed)
	require.NotNil(t, changed)
	assert.True(t, moved)
	assert.Equal(t, model.StatusDisplayed, changed.Status)

	_, moved = c.UpdateStatus("m01", peerKey, model.StatusDisplayed)
	assert.False(t, moved, "pointer never moves backwards")
	assert.Equal(t, "m02", c.LastDisplayed()[peerKey])

	changed, _ = c.UpdateStatus("m02", "", model.StatusSuccess)
	assert.Nil(t, changed, "status never regresses")

	changed, moved = c.UpdateStatus("missing", peerKey, model.StatusDisplayed)
	assert.Nil(t, changed)
	assert.False(t, moved)
}

func TestEditedMessage(t *testing.T) {
	edit := msg("E", "A")
	edit.Hidden = true
	edit.Record = map[string]string{
		model.RecordType: model.TypeEdited,
		model.RecordEdit: "A",
		model.RecordBody: "fixed",
	}
	edit.Payload = model.Text{Body: "fixed"}

	c := newSwarm()
	c.AddSwarmElement(edit)
	res := c.AddSwarmElement(msg("A", ""))
	require.Len(t, res.Updated, 1)

	got, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, model.Text{Body: "fixed", Edited: true}, got.Payload)
	assert.Equal(t, []string{"A"}, order(c), "edits stay hidden")
}

func TestLegacyOrdering(t *testing.T) {
	peer := model.NewContact(peerKey)
	c := NewLegacy("acc", peer, nil)
	assert.False(t, c.IsLoaded(), "empty legacy conversation is not loaded")
	assert.False(t, c.Summary().Loaded)
	base := time.Unix(1700000000, 0)
	mk := func(id string, offset int) *model.Interaction {
		return &model.Interaction{
			ID:        id,
			DaemonID:  "d-" + id,
			Author:    peerKey,
			Timestamp: base.Add(time.Duration(offset) * time.Second),
			Payload:   model.Text{Body: id},
		}
	}

	assert.True(t, c.AddInteraction(mk("b", 2)).NewLeaf)
	assert.False(t, c.AddInteraction(mk("a", 1)).NewLeaf)
	assert.True(t, c.AddInteraction(mk("c", 3)).NewLeaf)
	assert.Equal(t, []string{"a", "b", "c"}, order(c))

	dup := mk("other", 4)
	dup.DaemonID = "d-b"
	assert.True(t, c.AddInteraction(dup).Duplicate)
	assert.Equal(t, 3, c.Unread())
	assert.True(t, c.IsLoaded())
	assert.True(t, c.IsAfter("a", "c"))
	assert.Equal(t, peer, c.Peer())
}

func TestPage(t *testing.T) {
	c := newSwarm()
	for _, m := range chain(6) {
		c.AddSwarmElement(m)
	}
	ids := func(items []*model.Interaction) []string {
		var out []string
		for _, i := range items {
			out = append(out, i.ID)
		}
		return out
	}
	assert.Equal(t, []string{"m04", "m05"}, ids(c.Page("", 2)))
	assert.Equal(t, []string{"m01", "m02", "m03"}, ids(c.Page("m04", 3)))
	assert.Equal(t, []string{"m00"}, ids(c.Page("m01", 5)))
}

func TestSummary(t *testing.T) {
	c := newSwarm()
	c.AddMember(model.NewContact(peerKey))
	c.AddSwarmElement(msg("A", ""))
	c.SetConferences([]string{"conf1"})

	s := c.Summary()
	assert.Equal(t, "swarm:c0ffee", s.Key)
	assert.True(t, s.Swarm)
	assert.Equal(t, 1, s.Unread)
	assert.Equal(t, []string{peerKey}, s.Members)
	assert.Equal(t, []string{"conf1"}, s.Conferences)
	require.NotNil(t, s.Last)
	assert.Equal(t, "A", s.Last.ID)
}
