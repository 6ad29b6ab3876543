package lockedstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nghyane/authfailover/internal/authstore"
)

func TestUpdate_CreatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s := Open(path)

	_, ok, err := s.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		fresh.Profiles["p1"] = &authstore.Credential{Type: authstore.CredentialAPIKey, Provider: "anthropic"}
		return true, fresh
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty store file")
	}
}

func TestUpdate_DeclineLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s := Open(path)

	_, ok, err := s.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		return false, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when updater declines")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("expected no file to have been written")
	}
}

func TestUpdate_RereadsFreshEachTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s := Open(path)

	s.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		fresh.Profiles["p1"] = &authstore.Credential{Type: authstore.CredentialAPIKey, Provider: "anthropic"}
		return true, fresh
	})

	result, ok, err := s.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		if _, exists := fresh.Profiles["p1"]; !exists {
			t.Fatal("expected p1 to be visible on the fresh read")
		}
		fresh.Usage = map[string]*authstore.ProfileUsageStats{"p1": {ErrorCount: 1}}
		return true, fresh
	})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if result.Usage["p1"].ErrorCount != 1 {
		t.Fatalf("unexpected usage: %+v", result.Usage["p1"])
	}
}

func TestUpdate_SerializesConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s := Open(path)

	s.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		fresh.Profiles["p1"] = &authstore.Credential{Type: authstore.CredentialAPIKey, Provider: "anthropic"}
		fresh.Usage = map[string]*authstore.ProfileUsageStats{"p1": {}}
		return true, fresh
	})

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
				stats := fresh.Usage["p1"]
				stats.ErrorCount++
				return true, fresh
			})
		}()
	}
	wg.Wait()

	final, ok, err := s.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		return false, nil
	})
	_ = final
	_ = ok
	if err != nil {
		t.Fatalf("final read: %v", err)
	}

	reread := Open(path)
	snapshot, readOK, readErr := reread.Update(context.Background(), func(fresh *authstore.Store) (bool, *authstore.Store) {
		return false, nil
	})
	_ = snapshot
	_ = readOK
	if readErr != nil {
		t.Fatalf("reread: %v", readErr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var store authstore.Store
	if err := json.Unmarshal(data, &store); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if store.Usage["p1"].ErrorCount != n {
		t.Fatalf("errorCount = %d, want %d (lost update under concurrency)", store.Usage["p1"].ErrorCount, n)
	}
}
