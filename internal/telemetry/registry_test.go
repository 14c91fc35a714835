package telemetry

import (
	"reflect"
	"testing"
)

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()

	if !r.Add("M-001") {
		t.Fatal("first Add returned false")
	}
	if r.Add("M-001") {
		t.Fatal("duplicate Add returned true")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if !r.Contains("M-001") {
		t.Fatal("Contains() = false for registered topic")
	}

	if !r.Remove("M-001") {
		t.Fatal("Remove of present topic returned false")
	}
	if r.Remove("M-001") {
		t.Fatal("Remove of absent topic returned true")
	}
	if r.Contains("M-001") {
		t.Fatal("Contains() = true after removal")
	}
}

func TestRegistrySnapshotSorted(t *testing.T) {
	r := NewRegistry()
	r.Add("M-003")
	r.Add("M-001")
	r.Add("M-002")

	got := r.Snapshot()
	want := []string{"M-001", "M-002", "M-003"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}

	// Snapshot is a copy; mutating it must not leak back.
	got[0] = "mutated"
	if !r.Contains("M-001") {
		t.Fatal("registry affected by snapshot mutation")
	}
}
