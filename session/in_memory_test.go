package session

import (
	"testing"

	"github.com/contoso/salesagent/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStoreLazyGet(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID != "s1" {
		t.Fatalf("unexpected session id: %q", sess.ID)
	}
}

func TestInMemoryStoreAppendAndDelta(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.AppendEvent("s1", core.NewUserMessageEvent("run-1", "hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.ApplyDelta("s1", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.GetEvents()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sess.GetEvents()))
	}
	if v, ok := sess.GetState("k"); !ok || v != "v" {
		t.Fatalf("expected state k=v, got %v (%v)", v, ok)
	}
}

func TestInMemoryStoreReturnsClones(t *testing.T) {
	store := NewInMemoryStore()

	sess, _ := store.Get("s1")
	sess.SetState("local", true)

	again, _ := store.Get("s1")
	if _, ok := again.GetState("local"); ok {
		t.Fatal("mutation of returned clone leaked into stored session")
	}
}
