package mdict

import (
	"encoding/binary"
	"hash/adler32"
	"io"
)

// sizeReader reads the size-typed integer fields that differ between
// format V1 (32-bit) and V2 (64-bit), mirroring the rest of this
// package's version dispatch (see header.go).
type sizeReader func(r io.Reader) (uint64, error)

func readU32BE(r io.Reader) (uint64, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

func readU64BE(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func sizeReaderFor(v version) sizeReader {
	if v == v1 {
		return readU32BE
	}
	return readU64BE
}

// readBuf reads exactly len(buf) bytes, the Go analogue of the Rust
// original's read_buf/read_exact helper.
func readBuf(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readLenPrefixed reads a u32-BE length, that many bytes, and a
// trailing u32-LE Adler-32 of those bytes, failing with
// ErrInvalidChecksum(section) on mismatch. This is the length-prefixed
// idiom spec.md §4.1 names explicitly.
func readLenPrefixed(r io.Reader, section string) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	buf, err := readBuf(r, int(n))
	if err != nil {
		return nil, err
	}
	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return nil, err
	}
	if !adler32Matches(buf, checksum) {
		return nil, &ErrInvalidChecksum{Section: section}
	}
	return buf, nil
}

// adler32Matches reports whether data's Adler-32 equals checksum.
func adler32Matches(data []byte, checksum uint32) bool {
	return adler32.Checksum(data) == checksum
}

// checkAdler32 is the named-section convenience wrapper used by
// callers that already hold their own length-prefixed body (the
// V2 key-block header and key-block-info table, per-block payloads).
func checkAdler32(data []byte, checksum uint32, section string) error {
	if !adler32Matches(data, checksum) {
		return &ErrInvalidChecksum{Section: section}
	}
	return nil
}
