package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/ringcore/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	first, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if first.From != 0 || first.To != 2 || !first.Applied() {
		t.Errorf("first Migrate() = %+v, want 0 -> 2 (init + fts)", first)
	}

	second, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if second.Applied() || second.To != 2 {
		t.Errorf("second Migrate() = %+v, want nothing applied", second)
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Migrate(); !errors.Is(err, ErrDirty) {
		t.Errorf("Migrate() error = %v, want ErrDirty", err)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	db := testDB(t)
	boom := errors.New("boom")

	err := db.Tx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO peers (account_id, uri, username) VALUES ('acc', 'jami:aa', 'alice')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx() error = %v, want boom", err)
	}
	if p, err := db.GetPeer("acc", "jami:aa"); err != nil || p != nil {
		t.Errorf("GetPeer() = %+v, %v after rollback", p, err)
	}
}

func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"insert interaction", "INSERT INTO interactions (account_id, conversation_id, interaction_id, daemon_id, author, kind, body, status, is_read, swarm, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{"acc", "jami:aa", "i1", "d1", "jami:aa", "text", "hello", "success", false, false, 1000}},
		{"insert peer", "INSERT INTO peers (account_id, uri, username) VALUES (?, ?, ?)", []any{"acc", "jami:aa", "alice"}},
		{"queue outbox", "INSERT INTO outbox (client_msg_id, account_id, conversation_id, body, status) VALUES (?, ?, ?, ?, ?)", []any{"cid", "acc", "jami:aa", "text", "queued"}},
		{"set sync state", "INSERT INTO sync_state (key, value) VALUES (?, ?)", []any{"k", "v"}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM interactions_fts WHERE interactions_fts MATCH 'hello'").Scan(&count)
	if err != nil {
		t.Fatalf("FTS query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("FTS count = %d, want 1", count)
	}
}

func TestInteractionUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	i := &Interaction{AccountID: "acc", ConversationID: "jami:aa", InteractionID: "i1", Body: "hello", Kind: "text", Timestamp: 1000}
	if err := db.UpsertInteraction(i); err != nil {
		t.Fatal(err)
	}
	i.Body = "hello updated"
	i.DaemonID = "d1"
	if err := db.UpsertInteraction(i); err != nil {
		t.Fatal(err)
	}
	i.DaemonID = ""
	if err := db.UpsertInteraction(i); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListInteractions("acc", "jami:aa", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d interactions, want 1 (idempotent upsert failed)", len(got))
	}
	if got[0].Body != "hello updated" {
		t.Errorf("body = %q, want hello updated", got[0].Body)
	}
	if got[0].DaemonID != "d1" {
		t.Errorf("daemon id = %q, want d1 kept", got[0].DaemonID)
	}
}

func TestInteractionModelRoundTrip(t *testing.T) {
	db := testDB(t)
	ts := time.UnixMilli(1700000000123)

	legacy := &model.Interaction{
		ID:        "local-1",
		DaemonID:  "d42",
		Author:    "jami:00000000000000000000000000000000000000aa",
		Timestamp: ts,
		Status:    model.StatusSuccess,
		Payload:   model.Text{Body: "hi there"},
	}
	swarm, err := model.FromRecord("swarm:c0", "", map[string]string{
		model.RecordID:               "m2",
		model.RecordType:             model.TypeText,
		model.RecordBody:             "from the swarm",
		model.RecordLinearizedParent: "m1",
		model.RecordTimestamp:        "1700000001",
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		conv string
		i    *model.Interaction
	}{
		{"jami:00000000000000000000000000000000000000aa", legacy},
		{"swarm:c0", swarm},
	} {
		if err := db.UpsertInteraction(FromModel("acc", tc.conv, tc.i)); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := db.LoadHistory("acc", "jami:00000000000000000000000000000000000000aa")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	got, err := rows[0].Model()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "local-1" || got.DaemonID != "d42" || got.IsSwarm() {
		t.Errorf("legacy identity = %q/%q swarm=%v", got.ID, got.DaemonID, got.IsSwarm())
	}
	if got.Text() != "hi there" || !got.Timestamp.Equal(ts) || !got.IsIncoming() {
		t.Errorf("legacy content = %q at %v incoming=%v", got.Text(), got.Timestamp, got.IsIncoming())
	}

	rows, err = db.LoadHistory("acc", "swarm:c0")
	if err != nil {
		t.Fatal(err)
	}
	got, err = rows[0].Model()
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageID != "m2" || got.ParentID != "m1" || got.Record[model.RecordBody] != "from the swarm" {
		t.Errorf("swarm message = %+v", got)
	}
}

func TestListConversations(t *testing.T) {
	db := testDB(t)

	rows := []*Interaction{
		{AccountID: "acc", ConversationID: "jami:aa", InteractionID: "1", Author: "jami:aa", Body: "old", Timestamp: 1000},
		{AccountID: "acc", ConversationID: "jami:aa", InteractionID: "2", Author: "jami:aa", Body: "newest", Timestamp: 3000},
		{AccountID: "acc", ConversationID: "swarm:c0", InteractionID: "3", Body: "mine", Read: true, Swarm: true, Timestamp: 2000},
		{AccountID: "other", ConversationID: "jami:bb", InteractionID: "4", Body: "elsewhere", Timestamp: 5000},
	}
	for _, r := range rows {
		if err := db.UpsertInteraction(r); err != nil {
			t.Fatal(err)
		}
	}

	convs, err := db.ListConversations("acc")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ConversationID != "jami:aa" || convs[0].Count != 2 || convs[0].Unread != 2 || convs[0].LastPreview != "newest" {
		t.Errorf("first = %+v", convs[0])
	}
	if !convs[1].Swarm || convs[1].Unread != 0 {
		t.Errorf("second = %+v", convs[1])
	}

	if err := db.MarkConversationRead("acc", "jami:aa"); err != nil {
		t.Fatal(err)
	}
	n, err := db.ClearConversation("acc", "swarm:c0")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("cleared %d, want 1", n)
	}
	convs, err = db.ListConversations("acc")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].Unread != 0 {
		t.Errorf("after clear = %+v", convs)
	}
}

func TestSearchInteractions(t *testing.T) {
	db := testDB(t)

	for _, r := range []*Interaction{
		{AccountID: "acc", ConversationID: "jami:aa", InteractionID: "m1", Body: "hello world", Timestamp: 1000},
		{AccountID: "acc", ConversationID: "jami:aa", InteractionID: "m2", Body: "goodbye world", Timestamp: 2000},
		{AccountID: "acc", ConversationID: "jami:bb", InteractionID: "m3", Body: "hello again", Timestamp: 3000},
	} {
		if err := db.UpsertInteraction(r); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchInteractions("hello", "acc", "jami:aa", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Interaction.InteractionID != "m1" {
		t.Errorf("interaction_id = %q, want m1", results[0].Interaction.InteractionID)
	}

	// Updated bodies are re-indexed.
	if err := db.UpsertInteraction(&Interaction{AccountID: "acc", ConversationID: "jami:aa", InteractionID: "m2", Body: "hello edited", Timestamp: 2000}); err != nil {
		t.Fatal(err)
	}
	results, err = db.SearchInteractions("hello", "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Interaction.InteractionID != "m3" {
		t.Errorf("newest result = %q, want m3", results[0].Interaction.InteractionID)
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("client1", "acc", "jami:aa", "test msg"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].ClientMsgID != "client1" || pending[0].AccountID != "acc" {
		t.Errorf("entry = %+v", pending[0])
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("client1", "daemon1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
	e, err := db.GetOutbox("client1")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.Status != "sent" || e.DaemonMsgID != "daemon1" {
		t.Errorf("entry = %+v", e)
	}
}

func TestPeer(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertPeer(&Peer{AccountID: "acc", URI: "jami:aa", Username: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := db.BulkUpsertPeers([]Peer{{AccountID: "acc", URI: "jami:aa", DisplayName: "Alice"}}); err != nil {
		t.Fatal(err)
	}
	p, err := db.GetPeer("acc", "jami:aa")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Username != "alice" || p.DisplayName != "Alice" {
		t.Errorf("got %+v, want alice/Alice", p)
	}
	if p, _ := db.GetPeer("acc", "jami:zz"); p != nil {
		t.Errorf("expected nil for unknown peer")
	}
}

func TestCheckpoints(t *testing.T) {
	db := testDB(t)

	if err := db.SetState(LastReadKey("acc", "swarm:c0"), "m1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetState(LastReadKey("acc", "swarm:c0"), "m2"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetState(LastReadKey("acc_2", "jami:aa"), "x"); err != nil {
		t.Fatal(err)
	}

	v, ok, err := db.GetState(LastReadKey("acc", "swarm:c0"))
	if err != nil || !ok || v != "m2" {
		t.Errorf("GetState = %q, %v, %v", v, ok, err)
	}
	all, err := db.StatesWithPrefix("lastread/acc/")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("prefix match = %v, want only acc", all)
	}
	if err := db.DeleteState(LastReadKey("acc", "swarm:c0")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.GetState(LastReadKey("acc", "swarm:c0")); ok {
		t.Error("state still present after delete")
	}
}
