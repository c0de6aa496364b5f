package redis

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "catalog"

// Keys builds the Redis keys of one catalog.
type Keys struct {
	prefix string
}

// NewKeys returns key helpers for prefix ("" uses DefaultPrefix).
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{prefix: prefix}
}

// Record returns the key holding one record's JSON document.
func (k Keys) Record(recordID string) string {
	return k.prefix + ":record:" + recordID
}

// Active returns the key of the set of non-archived record ids.
func (k Keys) Active() string {
	return k.prefix + ":records:active"
}

// Archived returns the key of the set of archived record ids.
func (k Keys) Archived() string {
	return k.prefix + ":records:archived"
}
