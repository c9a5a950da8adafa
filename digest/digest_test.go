package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestCRC32StandardVectors(t *testing.T) {
	if got := CRC32(""); got != 0 {
		t.Fatalf("expected crc32(\"\") = 0, got %08x", got)
	}
	if got := CRC32("123456789"); got != 0xCBF43926 {
		t.Fatalf("expected crc32(\"123456789\") = cbf43926, got %08x", got)
	}
}

func TestCRC32TableEntries(t *testing.T) {
	if len(Table) != 256 {
		t.Fatalf("expected 256 table entries, got %d", len(Table))
	}
	if Table[0] != 0 || Table[1] != 0x77073096 || Table[255] != 0x2D02EF8D {
		t.Fatalf("unexpected table entries: %08x %08x %08x", Table[0], Table[1], Table[255])
	}
}

func TestCRC32SeedZeroMatchesDefault(t *testing.T) {
	for _, s := range []string{"", "a", "tokenABC", "root/Auth?UserName=alice"} {
		if CRC32Seed(s, 0) != CRC32(s) {
			t.Fatalf("seed 0 must equal default init for %q", s)
		}
	}
}

func TestCRC32ChainedReference(t *testing.T) {
	chained := CRC32Seed("6789", CRC32Seed("12345", 0))
	if chained != 0xCBF43926 {
		t.Fatalf("expected chained crc cbf43926, got %08x", chained)
	}
}

func TestCRC32KeyedChainDiffersFromPlain(t *testing.T) {
	const key = 0x1234abcd
	keyed := CRC32Seed("root/People", CRC32Seed("0000beef", key))
	if keyed == CRC32("0000beefroot/People") {
		t.Fatal("keyed chain must not equal plain crc of the concatenation")
	}
	if keyed != CRC32Seed("root/People", CRC32Seed("0000beef", key)) {
		t.Fatal("keyed chain must be deterministic")
	}
	if keyed == CRC32Seed("root/People", CRC32Seed("0000beef", key+1)) {
		t.Fatal("keyed chain must depend on the key")
	}
}

func TestCRC32BytesMatchesString(t *testing.T) {
	if CRC32Bytes([]byte("123456789"), 0) != CRC32("123456789") {
		t.Fatal("byte and string variants disagree")
	}
}

func TestSHA256Vectors(t *testing.T) {
	cases := map[string]string{
		"":    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"abc": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq": "248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1",
	}
	for in, want := range cases {
		if got := SHA256(in); got != want {
			t.Fatalf("sha256(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestSHA256EncodesMultiByteRunes(t *testing.T) {
	twoByte := sha256.Sum256([]byte{0xc3, 0xa9})
	if got := SHA256("é"); got != hex.EncodeToString(twoByte[:]) {
		t.Fatalf("expected utf-8 expansion of U+00E9, got %s", got)
	}

	threeByte := sha256.Sum256([]byte{0xe2, 0x82, 0xac})
	if got := SHA256("€"); got != hex.EncodeToString(threeByte[:]) {
		t.Fatalf("expected utf-8 expansion of U+20AC, got %s", got)
	}
}

func TestSHA256Latin1(t *testing.T) {
	oneByte := sha256.Sum256([]byte{0xe9})
	if got := SHA256Latin1("é"); got != hex.EncodeToString(oneByte[:]) {
		t.Fatalf("expected single byte for U+00E9, got %s", got)
	}
	if SHA256Latin1("abc") != SHA256("abc") {
		t.Fatal("ascii input must hash identically in both modes")
	}
}

func TestIsSHA256Hex(t *testing.T) {
	if !IsSHA256Hex(SHA256("x")) {
		t.Fatal("expected digest to be recognized")
	}
	if IsSHA256Hex("ABC") || IsSHA256Hex(SHA256("x")[:63]+"Z") {
		t.Fatal("expected malformed digests to be rejected")
	}
}
