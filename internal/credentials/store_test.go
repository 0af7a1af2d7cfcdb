package credentials

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

type fakeKeyring struct {
	entries map[string]string
	setErr  error
}

func newFakeKeyring() *fakeKeyring {
	return &fakeKeyring{entries: make(map[string]string)}
}

func (f *fakeKeyring) Set(service, user, password string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[service+"/"+user] = password
	return nil
}

func (f *fakeKeyring) Get(service, user string) (string, error) {
	v, ok := f.entries[service+"/"+user]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (f *fakeKeyring) Delete(service, user string) error {
	key := service + "/" + user
	if _, ok := f.entries[key]; !ok {
		return keyring.ErrNotFound
	}
	delete(f.entries, key)
	return nil
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStoreWithKeyring(newFakeKeyring())

	want := Credentials{
		ClientKey:    "myKey",
		ClientSecret: "c2VjcmV0",
		ProjectID:    "c1e2a3c4-0000-0000-0000-000000000001",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestLoadWithoutSavedCredentials(t *testing.T) {
	store := NewStoreWithKeyring(newFakeKeyring())

	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestSaveRejectsEmptyPair(t *testing.T) {
	store := NewStoreWithKeyring(newFakeKeyring())

	if err := store.Save(Credentials{ClientKey: "key-only"}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	ring := newFakeKeyring()
	store := NewStoreWithKeyring(ring)

	if err := store.Save(Credentials{ClientKey: "k", ClientSecret: "c2VjcmV0"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear should not fail, got %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials after Clear, got %v", err)
	}
}

func TestLoadRejectsCorruptEntry(t *testing.T) {
	ring := newFakeKeyring()
	ring.entries["epideploy/default"] = "{not json"
	store := NewStoreWithKeyring(ring)

	if _, err := store.Load(); err == nil {
		t.Fatal("expected error for corrupt keychain entry")
	}
}
