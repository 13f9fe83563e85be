package interop

import "encoding/binary"

const noncePrefix = "nonce"

// VersionSalt returns salt derived from the version number: its 4-byte
// little-endian representation. Equal versions produce equal salts, so the
// caller is responsible for varying them.
func VersionSalt(version uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, version)
	return b
}

// NonceSalt returns salt derived from the internally tracked counter value.
// Nonce salts are longer than version salts, so they never coincide.
func NonceSalt(n uint64) []byte {
	b := make([]byte, len(noncePrefix)+8)
	copy(b, noncePrefix)
	binary.LittleEndian.PutUint64(b[len(noncePrefix):], n)
	return b
}
