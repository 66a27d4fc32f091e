package timeline

import "testing"

func TestResolveOrCreate(t *testing.T) {
	r := NewRegistry()

	id1, isNew := r.ResolveOrCreate("T1")
	if !isNew {
		t.Fatal("first resolve reported existing timeline")
	}
	if id1 == "" {
		t.Fatal("empty timeline id")
	}

	id2, isNew := r.ResolveOrCreate("T1")
	if isNew {
		t.Fatal("second resolve reported new timeline")
	}
	if id2 != id1 {
		t.Fatalf("resolve returned %s, want %s", id2, id1)
	}

	other, _ := r.ResolveOrCreate("T2")
	if other == id1 {
		t.Fatal("distinct tests share a timeline id")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
}

func TestRemoveMintsFreshIdentity(t *testing.T) {
	r := NewRegistry()

	id1, _ := r.ResolveOrCreate("T1")

	removed, ok := r.Remove("T1")
	if !ok || removed != id1 {
		t.Fatalf("Remove = %s, %v; want %s, true", removed, ok, id1)
	}
	if _, ok := r.Get("T1"); ok {
		t.Fatal("Get found removed timeline")
	}
	if _, ok := r.Remove("T1"); ok {
		t.Fatal("second Remove reported a mapping")
	}

	id2, isNew := r.ResolveOrCreate("T1")
	if !isNew {
		t.Fatal("resolve after remove reported existing timeline")
	}
	if id2 == id1 {
		t.Fatalf("timeline id reused after removal: %s", id1)
	}
}

func TestGetDoesNotCreate(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("T1"); ok {
		t.Fatal("Get found an unregistered timeline")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after Get, want 0", r.Len())
	}
}
