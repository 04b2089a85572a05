package ringtest

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/ringcore/internal/ring"
)

func TestQueriesAnswerFromLists(t *testing.T) {
	r := New()
	r.ConversationRequestList["acc"] = []ring.ConversationRequestReceived{{ConversationID: "5e1f", From: "jami:aa"}}

	got, err := r.ConversationRequests(context.Background(), "acc")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ConversationID != "5e1f" {
		t.Errorf("ConversationRequests() = %+v", got)
	}
	if n := len(r.Invocations("ConversationRequests")); n != 1 {
		t.Errorf("recorded %d invocations, want 1", n)
	}
}

func TestLoadRequestIDsAndFailures(t *testing.T) {
	r := New()
	ctx := context.Background()

	a, _ := r.LoadConversationMessages(ctx, "acc", "5e1f", "", 10)
	b, _ := r.LoadConversationMessages(ctx, "acc", "5e1f", "m1", 10)
	ids := r.LoadRequestIDs()
	if len(ids) != 2 || ids[0] != a || ids[1] != b || a == b {
		t.Errorf("ids = %v, returned %d and %d", ids, a, b)
	}

	boom := errors.New("boom")
	r.Fail("LoadConversationMessages", boom)
	if _, err := r.LoadConversationMessages(ctx, "acc", "5e1f", "", 10); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if n := len(r.LoadRequestIDs()); n != 2 {
		t.Errorf("failed load handed out an id (%d ids)", n)
	}
}
