package dispatch

// HashKey maps a dedup key to a stable 32-bit identifier for native
// notification APIs that require integer IDs. Same string, same
// integer, across process restarts; that determinism is what lets the
// native layer suppress duplicate schedules. Collisions are accepted as
// a known low-probability limitation, not a correctness guarantee.
//
// FNV-1a, 32-bit.
func HashKey(key string) int32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= prime32
	}
	return int32(h)
}
