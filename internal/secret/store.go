package secret

// SecretStore keeps credentials (database passwords, API keys) out of
// SQLite. Lookup misses are not errors: Get returns nil for an unknown
// key so callers can fall back to prompting.
type SecretStore interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}
