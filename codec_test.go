package mdict

import (
	"encoding/binary"
	"hash/adler32"
	"testing"

	"github.com/stretchr/testify/require"
)

// fastEncryptForTest is the forward direction of the "fast scramble"
// cipher, used only to manufacture known-ciphertext fixtures for
// fastDecrypt: unlike fastDecrypt, prev tracks the byte just written
// (the ciphertext byte), not the byte just consumed.
func fastEncryptForTest(plain []byte, key []byte) []byte {
	out := make([]byte, len(plain))
	var prev byte = 0x36
	for i, b := range plain {
		t := b ^ key[i%len(key)] ^ prev ^ byte(i)
		t = (t >> 4) | (t << 4)
		out[i] = t
		prev = t
	}
	return out
}

func TestFastDecryptRecoversPlaintext(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	plain := []byte("the quick brown fox jumps over the lazy dog")
	cipher := fastEncryptForTest(plain, key)
	got := fastDecrypt(cipher, key)
	require.Equal(t, plain, got)
}

func TestSalsa20XORIsInvolution(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	plain := []byte("some reasonably long plaintext buffer spanning more than one 64-byte salsa20 block boundary, padded")
	buf := append([]byte(nil), plain...)
	salsa20XOR(buf, key)
	require.NotEqual(t, plain, buf)
	salsa20XOR(buf, key)
	require.Equal(t, plain, buf)
}

func TestDecodeBlockIdentity(t *testing.T) {
	payload := []byte("identity method payload")
	raw := packIdentityBlock(payload)
	out, err := decodeBlock(raw, len(raw), len(payload), "test")
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestDecodeBlockFastScramble(t *testing.T) {
	payload := []byte("scrambled payload bytes")
	checksum := adler32.Checksum(payload)
	var checksumBytes [4]byte
	binary.BigEndian.PutUint32(checksumBytes[:], checksum)
	key := ripemd128Key(checksumBytes[:])
	cipher := fastEncryptForTest(payload, key)

	raw := make([]byte, 8+len(cipher))
	binary.LittleEndian.PutUint32(raw[0:4], 1<<4) // encrypt method 1, compress method 0
	copy(raw[4:8], checksumBytes[:])
	copy(raw[8:], cipher)

	out, err := decodeBlock(raw, len(raw), len(payload), "test")
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestDecodeBlockSalsa20(t *testing.T) {
	payload := []byte("salsa20 encrypted record payload")
	checksum := adler32.Checksum(payload)
	var checksumBytes [4]byte
	binary.BigEndian.PutUint32(checksumBytes[:], checksum)
	key := ripemd128Key(checksumBytes[:])
	cipher := append([]byte(nil), payload...)
	salsa20XOR(cipher, key)

	raw := make([]byte, 8+len(cipher))
	binary.LittleEndian.PutUint32(raw[0:4], 2<<4) // encrypt method 2, compress method 0
	copy(raw[4:8], checksumBytes[:])
	copy(raw[8:], cipher)

	out, err := decodeBlock(raw, len(raw), len(payload), "test")
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestDecodeBlockBadChecksum(t *testing.T) {
	payload := []byte("payload")
	raw := packIdentityBlock(payload)
	// Corrupt the stored checksum.
	binary.BigEndian.PutUint32(raw[4:8], adler32.Checksum(payload)+1)
	_, err := decodeBlock(raw, len(raw), len(payload), "test")
	require.Error(t, err)
}

func TestDecodeBlockUnknownMethods(t *testing.T) {
	raw := make([]byte, 9)
	binary.LittleEndian.PutUint32(raw[0:4], 0xf) // compress method 0xf: invalid
	_, err := decodeBlock(raw, len(raw), 1, "test")
	require.Error(t, err)

	raw2 := make([]byte, 9)
	binary.LittleEndian.PutUint32(raw2[0:4], 0xf0) // encrypt method 0xf: invalid
	_, err = decodeBlock(raw2, len(raw2), 1, "test")
	require.Error(t, err)
}

func TestDecodeBlockTooShort(t *testing.T) {
	_, err := decodeBlock([]byte{1, 2, 3}, 3, 0, "test")
	require.Error(t, err)
}

// packIdentityBlock builds the on-disk framing for a block using
// compress method 0 and encrypt method 0: the caller's bare payload
// becomes both the "compressed" and "decompressed" body.
func packIdentityBlock(payload []byte) []byte {
	raw := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(raw[0:4], 0)
	binary.BigEndian.PutUint32(raw[4:8], adler32.Checksum(payload))
	copy(raw[8:], payload)
	return raw
}
