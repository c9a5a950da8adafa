package digest

import "hash/crc32"

// Table is the reflected 0xEDB88320 lookup table (ZMODEM, PPP FCS-32).
// It is built once by hash/crc32 and never mutated.
var Table = crc32.IEEETable

// CRC32 returns the CRC-32 of s using the standard 0xFFFFFFFF initial value.
func CRC32(s string) uint32 {
	return crc32.Update(0, Table, []byte(s))
}

// CRC32Seed folds s into a running CRC. The seed is the complemented output of
// a previous CRC32 or CRC32Seed call; it is un-complemented before the first
// byte is folded and the accumulator is complemented again on return.
//
// CRC32Seed(s, 0) == CRC32(s).
func CRC32Seed(s string, seed uint32) uint32 {
	return crc32.Update(seed, Table, []byte(s))
}

// CRC32Bytes is CRC32Seed for raw bytes.
func CRC32Bytes(p []byte, seed uint32) uint32 {
	return crc32.Update(seed, Table, p)
}
