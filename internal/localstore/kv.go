// Package localstore provides the key/value blob storage underneath the
// entity stores. Each logical collection is one JSON array serialized under a
// dedicated key, mirroring a browser localStorage layout. Two backends exist:
// an in-memory map for tests and ephemeral runs, and a single-table sqlite
// file for durable local state.
package localstore

// KV is the storage contract the entity stores are built on.
// Get reports ok=false for an absent key; a missing key is not an error.
type KV interface {
	// Get returns the blob stored under key.
	Get(key string) (value []byte, ok bool, err error)

	// Set stores the blob under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes the key. Deleting an absent key is a no-op.
	Delete(key string) error

	// Keys returns all stored keys in lexical order.
	Keys() ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
