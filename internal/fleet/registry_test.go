package fleet

import (
	"testing"
)

func TestAttachAssignsColorIndex(t *testing.T) {
	r := NewRegistry(3)
	var ids []string
	for i, src := range []string{"a", "b", "c", "d"} {
		e := NewEntry("drone", src, "", ModeSimulated, demoMission())
		if err := r.Attach(e); err != nil {
			t.Fatalf("attach %d failed: %v", i, err)
		}
		ids = append(ids, e.ID())
	}
	want := []int{0, 1, 2, 0}
	for i, id := range ids {
		e, _ := r.Get(id)
		if e.ColorIndex() != want[i] {
			t.Errorf("entry %d color = %d, want %d", i, e.ColorIndex(), want[i])
		}
	}
}

func TestAttachRejectsDuplicateSource(t *testing.T) {
	r := NewRegistry(0)
	if err := r.Attach(NewEntry("a", "drone:1", "", ModeSimulated, demoMission())); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if err := r.Attach(NewEntry("b", "drone:1", "", ModeLive, demoMission())); err == nil {
		t.Errorf("duplicate source must be rejected")
	}
}

func TestDetachRemovesAndReselects(t *testing.T) {
	r := NewRegistry(0)
	a := NewEntry("a", "drone:1", "", ModeSimulated, demoMission())
	b := NewEntry("b", "drone:2", "", ModeSimulated, demoMission())
	r.Attach(a)
	r.Attach(b)
	r.SetActive(a.ID())

	if _, ok := r.Detach(a.ID()); !ok {
		t.Fatalf("detach failed")
	}
	if _, ok := r.Get(a.ID()); ok {
		t.Errorf("detached entry still resolvable")
	}
	active, ok := r.Active()
	if !ok || active.ID() != b.ID() {
		t.Errorf("active selection should fall back to the remaining entry")
	}
	if _, ok := r.Detach(a.ID()); ok {
		t.Errorf("double detach should report missing")
	}
}

func TestSetActiveUnknownID(t *testing.T) {
	r := NewRegistry(0)
	if r.SetActive("nope") {
		t.Errorf("selecting an unknown id must fail")
	}
}

func TestAllSnapshotSurvivesDetach(t *testing.T) {
	r := NewRegistry(0)
	a := NewEntry("a", "drone:1", "", ModeSimulated, demoMission())
	b := NewEntry("b", "drone:2", "", ModeSimulated, demoMission())
	r.Attach(a)
	r.Attach(b)

	snapshot := r.All()
	r.Detach(a.ID())
	// The snapshot slice taken before detach stays iterable and ordered.
	if len(snapshot) != 2 || snapshot[0].ID() != a.ID() || snapshot[1].ID() != b.ID() {
		t.Errorf("iteration snapshot corrupted by detach")
	}
	if r.Len() != 1 {
		t.Errorf("registry len = %d, want 1", r.Len())
	}
}
