package secret

import (
	"fmt"
	"os/exec"
	"strings"
)

// All entries live under one keychain service name, with the connection
// id as the account.
const keychainService = "weave-db-source"

// KeychainStore backs SecretStore with the macOS Keychain, shelling out
// to the `security` tool so the app needs no cgo or entitlements.
type KeychainStore struct{}

// NewKeychainStore creates a KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{}
}

func security(args ...string) *exec.Cmd {
	return exec.Command("security", args...)
}

// Set writes a secret, replacing any existing entry for the key.
func (k *KeychainStore) Set(key string, value []byte) error {
	k.Delete(key) // stale entry, if any

	cmd := security("add-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w", string(value),
		"-U",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain set: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get reads a secret. An absent key reads as nil, not as an error; so
// does a locked or unavailable keychain, which surfaces later as a
// connection failure instead of blocking the UI here.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := security("find-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w",
	).Output()
	if err != nil {
		return nil, nil
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret. Deleting a key that was never stored is fine.
func (k *KeychainStore) Delete(key string) error {
	security("delete-generic-password",
		"-a", key,
		"-s", keychainService,
	).Run()
	return nil
}

// MemoryStore is an in-memory SecretStore for tests and headless runs.
type MemoryStore struct {
	values map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Delete(key string) error {
	delete(m.values, key)
	return nil
}
