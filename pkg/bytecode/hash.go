package bytecode

// FNV-1a parameters for 32-bit string hashing.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// HashString computes the 32-bit FNV-1a hash of a string. This is the hash
// the OpHashStr instruction computes at runtime; compile-time hashing of
// case constants must agree with it for hash dispatch to be sound.
func HashString(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// HashValue hashes a runtime string-or-nil value the way OpHashStr does.
// Nil hashes like the empty string; whether nil and "" are equal is a
// separate question answered by OpStrEq, so the shared hash is simply a
// permitted collision.
func HashValue(v Value) uint32 {
	if v.IsNil() {
		return HashString("")
	}
	return HashString(v.Str())
}
