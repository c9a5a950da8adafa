// Package digest provides the two hash primitives the mORMot authentication
// scheme is built on: the ZMODEM/PPP CRC-32 with seed chaining, and SHA-256
// rendered as lowercase hex.
//
// # Architecture boundaries
//
// The functions here are pure and allocation-light. The CRC-32 table is the
// process-wide immutable IEEE table from hash/crc32; nothing in this package
// holds mutable state.
//
// # Seed chaining
//
// [CRC32Seed] treats its seed as a previous CRC result: the seed is
// un-complemented before folding, so CRC32Seed(b, CRC32Seed(a, 0)) continues
// the stream that produced CRC32Seed(a, 0). The session signer relies on this
// to mix the session private key, the nonce and the URL.
package digest
