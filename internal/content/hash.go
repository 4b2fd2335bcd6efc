package content

import "github.com/cespare/xxhash/v2"

// StableHash returns the deterministic identifier of a definition name. It is
// the only reference the simulation and the persistence store keep to content.
func StableHash(name string) uint64 {
	return xxhash.Sum64String(name)
}
