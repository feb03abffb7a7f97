package storage

import "testing"

func TestNewStoreDefaultsToMemory(t *testing.T) {
	for _, kind := range []string{"", "memory"} {
		store, err := NewStore(kind, "")
		if err != nil {
			t.Fatalf("kind %q: %v", kind, err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Fatalf("kind %q: got %T, want *MemoryStore", kind, store)
		}
	}
}

func TestNewStoreRejectsUnknownKind(t *testing.T) {
	if _, err := NewStore("postgres", ""); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
