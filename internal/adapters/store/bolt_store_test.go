package store

import (
	"errors"
	"path/filepath"
	"testing"

	"dev.rubentxu.devops-platform/server-manager/internal/domain"
	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

func newTestStore(t *testing.T) *BoltDBStore[domain.ServerConfig] {
	t.Helper()
	s, err := NewBoltDBStore[domain.ServerConfig](filepath.Join(t.TempDir(), "servers.db"), 0o600, "servers")
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreRoundtrip(t *testing.T) {
	s := newTestStore(t)

	cfg := domain.ServerConfig{
		ID:          "abc",
		Name:        "Test Server",
		EnginePath:  "/opt/engine",
		ProjectPath: "/projects/Game/Game.uproject",
		Port:        7777,
	}
	if err := s.Put(cfg.ID, cfg); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get("abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != cfg {
		t.Errorf("Get = %+v, want %+v", got, cfg)
	}
}

func TestBoltStoreGetMissingKey(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ports.ErrKeyNotFound) {
		t.Errorf("Get on missing key = %v, want ErrKeyNotFound", err)
	}
}

func TestBoltStoreListAndDelete(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Put(id, domain.ServerConfig{ID: id, Name: "Server " + id, Port: 7777}); err != nil {
			t.Fatalf("Put(%s) failed: %v", id, err)
		}
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(list))
	}

	if err := s.Delete("b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	list, err = s.List()
	if err != nil {
		t.Fatalf("List after delete failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List after delete returned %d entries, want 2", len(list))
	}
	for _, cfg := range list {
		if cfg.ID == "b" {
			t.Errorf("deleted entry still present: %+v", cfg)
		}
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.db")

	s, err := NewBoltDBStore[domain.ServerConfig](path, 0o600, "servers")
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}
	if err := s.Put("x", domain.ServerConfig{ID: "x", Name: "Persisted", Port: 7000}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.Close()

	s2, err := NewBoltDBStore[domain.ServerConfig](path, 0o600, "servers")
	if err != nil {
		t.Fatalf("Failed to reopen bolt store: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get("x")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Name != "Persisted" {
		t.Errorf("Get after reopen = %+v", got)
	}
}
