package core

import (
	"testing"
)

type tcMockArtifactStore struct {
	saved map[string][]byte
}

func (a *tcMockArtifactStore) Save(sessionID, artifactID string, data []byte) error {
	if a.saved == nil {
		a.saved = map[string][]byte{}
	}
	a.saved[sessionID+"/"+artifactID] = data
	return nil
}

func (a *tcMockArtifactStore) Get(sessionID, artifactID string) ([]byte, error) {
	return a.saved[sessionID+"/"+artifactID], nil
}

func (a *tcMockArtifactStore) List(sessionID string) ([]string, error) { return nil, nil }

func (a *tcMockArtifactStore) Delete(sessionID, artifactID string) error { return nil }

func TestToolContext_Validation(t *testing.T) {
	rc, _ := newTestRunContext(nil, nil)

	tc := NewToolContext(rc, "fc-1")
	if !tc.IsValid() {
		t.Fatal("expected valid tool context")
	}
	if err := tc.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	empty := NewToolContext(rc, "")
	if empty.IsValid() {
		t.Error("empty function call id should be invalid")
	}
}

func TestToolContext_StateDeltaAccumulation(t *testing.T) {
	rc, _ := newTestRunContext(nil, nil)
	tc := NewToolContext(rc, "fc-2")

	tc.SetState("row_count", 12)

	// Visible on the run context immediately.
	if v, ok := rc.GetState("row_count"); !ok || v.(int) != 12 {
		t.Fatalf("state not staged on run context: %v %v", v, ok)
	}

	ev := NewFunctionResponseEvent("sales-agent", "fc-2", "fetch_sales_data_using_sqlite_query", "ok", nil)
	tc.InternalApplyActions(&ev)
	if ev.Actions.StateDelta["row_count"] != 12 {
		t.Fatalf("state delta not applied to event: %+v", ev.Actions)
	}
}

func TestToolContext_ArtifactRoundTrip(t *testing.T) {
	rc, _ := newTestRunContext(nil, nil)
	store := &tcMockArtifactStore{}
	rc.ArtifactStore = store
	tc := NewToolContext(rc, "fc-3")

	data := []byte("region,revenue\nEUROPE,100\n")
	if err := tc.SaveArtifact("results.csv", data); err != nil {
		t.Fatalf("save artifact failed: %v", err)
	}

	got, err := tc.LoadArtifact("results.csv")
	if err != nil || string(got) != string(data) {
		t.Fatalf("artifact round trip failed: %v %q", err, got)
	}

	ev := NewFunctionResponseEvent("sales-agent", "fc-3", "fetch_sales_data_using_sqlite_query", "ok", nil)
	tc.InternalApplyActions(&ev)
	if ev.Actions.ArtifactDelta["results.csv"] != len(data) {
		t.Fatalf("artifact delta missing: %+v", ev.Actions)
	}
}

func TestToolContext_Escalate(t *testing.T) {
	rc, _ := newTestRunContext(nil, nil)
	tc := NewToolContext(rc, "fc-4")

	tc.Escalate()

	ev := NewEvent("run-1", "sales-agent")
	tc.InternalApplyActions(&ev)
	if ev.Actions.Escalate == nil || !*ev.Actions.Escalate {
		t.Fatal("escalate flag not applied to event")
	}
}
