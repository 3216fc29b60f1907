package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSeed pre-loads raw encoded collections, e.g. from a previous Raw call.
func WithSeed(data map[string][]byte) Option {
	return func(s *MemoryStore) {
		for k, v := range data {
			s.data[k] = append([]byte(nil), v...)
		}
	}
}
