package engine

// Namespace prefixes partition the single key space the Merkle Patricia
// Trie (C5) is built over, the way a table name partitions a key-value
// database. Adapted from erigon-lib/kv/tables.go's table-naming convention
// (one named constant per logical table, documented with its key/value
// shape) — scaled down to the handful of namespaces this engine needs.
type Namespace byte

const (
	// NamespaceTrieNode stores serialized trie nodes, keyed by their
	// Keccak-256 node id (spec.md §4.5).
	NamespaceTrieNode Namespace = iota + 1

	// NamespaceDocument stores document bodies, keyed by
	// sha256(0x01 || collection_name || 0x00 || document_id), as
	// document.documentKey derives it (spec.md §4.7).
	NamespaceDocument

	// NamespaceCollectionManifest stores the set of collection names and
	// their current root pointers.
	NamespaceCollectionManifest

	// NamespaceStateRoot stores the current and historical state roots
	// produced by the state transition layer (spec.md §4.6).
	NamespaceStateRoot

	// NamespaceAuditLog stores append-only audit log entries, keyed by a
	// monotonically increasing sequence number (spec.md §4.6).
	NamespaceAuditLog
)

// Key builds a namespaced key by prefixing raw with the namespace tag, so
// distinct concerns sharing one trie never collide on key bytes.
func Key(ns Namespace, raw []byte) []byte {
	out := make([]byte, 1+len(raw))
	out[0] = byte(ns)
	copy(out[1:], raw)
	return out
}
