package mdict

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
)

func TestDefaultNormalizer(t *testing.T) {
	require.Equal(t, "helloworld", defaultNormalizer("Hello, World!", false))
	require.Equal(t, "RawPath.png", defaultNormalizer("RawPath.png", true))
}

// packV1KeyInfoEntry builds one V1 key-block-info record: num_entries,
// a 1-byte-length-prefixed head key, a 1-byte-length-prefixed tail
// key, then the compressed/decompressed size pair.
func packV1KeyInfoEntry(numEntries uint32, head, tail string, compressedSize, decompressedSize uint32) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, numEntries)
	buf.WriteByte(byte(len(head)))
	buf.WriteString(head)
	buf.WriteByte(byte(len(tail)))
	buf.WriteString(tail)
	_ = binary.Write(&buf, binary.BigEndian, compressedSize)
	_ = binary.Write(&buf, binary.BigEndian, decompressedSize)
	return buf.Bytes()
}

func TestDecodeKeyBlockInfoTableV1(t *testing.T) {
	h := &fileHeader{version: v1, encoding: mustEncoding(t, "UTF-8")}
	entry1 := packV1KeyInfoEntry(2, "a", "b", 29, 21)
	entry2 := packV1KeyInfoEntry(1, "c", "c", 10, 5)
	table := append(entry1, entry2...)

	infos, err := decodeKeyBlockInfoTable(table, h)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, BlockEntryInfo{CompressedSize: 29, DecompressedSize: 21}, infos[0])
	require.Equal(t, BlockEntryInfo{CompressedSize: 10, DecompressedSize: 5}, infos[1])
}

func packKeyEntry(buf *bytes.Buffer, offset uint32, text string) {
	_ = binary.Write(buf, binary.BigEndian, offset)
	buf.WriteString(text)
	buf.WriteByte(0)
}

func TestReadKeyBlocksV1RoundTrip(t *testing.T) {
	h := &fileHeader{version: v1, encoding: mustEncoding(t, "UTF-8")}

	var payload bytes.Buffer
	packKeyEntry(&payload, 0, "apple")
	packKeyEntry(&payload, 19, "banana")

	raw := packIdentityBlock(payload.Bytes())
	infos := []BlockEntryInfo{{CompressedSize: len(raw), DecompressedSize: payload.Len()}}

	blocks, err := readKeyBlocks(raw, h, infos, defaultNormalizer, false)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Entries, 2)
	require.Equal(t, "apple", blocks[0].Entries[0].Text)
	require.EqualValues(t, 0, blocks[0].Entries[0].Offset)
	require.Equal(t, "banana", blocks[0].Entries[1].Text)
	require.EqualValues(t, 19, blocks[0].Entries[1].Offset)
}

func TestReadKeyBlocksAppliesNormalizer(t *testing.T) {
	h := &fileHeader{version: v1, encoding: mustEncoding(t, "UTF-8")}
	var payload bytes.Buffer
	packKeyEntry(&payload, 0, "Hello, World!")
	raw := packIdentityBlock(payload.Bytes())
	infos := []BlockEntryInfo{{CompressedSize: len(raw), DecompressedSize: payload.Len()}}

	blocks, err := readKeyBlocks(raw, h, infos, defaultNormalizer, false)
	require.NoError(t, err)
	require.Equal(t, "helloworld", blocks[0].Entries[0].Text)
}

func TestReadKeyBlocksTruncated(t *testing.T) {
	h := &fileHeader{version: v1, encoding: mustEncoding(t, "UTF-8")}
	infos := []BlockEntryInfo{{CompressedSize: 100, DecompressedSize: 10}}
	_, err := readKeyBlocks([]byte{1, 2, 3}, h, infos, defaultNormalizer, false)
	require.Error(t, err)
}

// packV2KeyInfoEntry builds one V2 key-block-info record: 8-byte
// fields throughout, and head/tail key texts each carrying one extra
// on-disk NUL-terminator unit beyond their declared u16-BE length
// (spec.md §4.4).
func packV2KeyInfoEntry(numEntries uint64, head, tail string, compressedSize, decompressedSize uint64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, numEntries)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(head)))
	buf.WriteString(head)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(tail)))
	buf.WriteString(tail)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.BigEndian, compressedSize)
	_ = binary.Write(&buf, binary.BigEndian, decompressedSize)
	return buf.Bytes()
}

func TestReadKeyBlockInfosV2EncryptedZlib(t *testing.T) {
	h := &fileHeader{version: v2, encoding: mustEncoding(t, "UTF-8"), encrypted: 2}

	table := packV2KeyInfoEntry(2, "a", "b", 29, 21)
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(table)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	checksum := adler32.Checksum(table)
	var checksumBytes [4]byte
	binary.BigEndian.PutUint32(checksumBytes[:], checksum)
	key := keyInfoUnscrambleKey(checksumBytes[:])
	encrypted := fastEncryptForTest(compressed.Bytes(), key)

	var body bytes.Buffer
	body.Write(v2KeyInfoMagic[:])
	body.Write(checksumBytes[:])
	body.Write(encrypted)

	infos, err := readKeyBlockInfos(bytes.NewReader(body.Bytes()), body.Len(), h)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, BlockEntryInfo{CompressedSize: 29, DecompressedSize: 21}, infos[0])
}

func TestReadKeyBlockInfosV2BadMagic(t *testing.T) {
	h := &fileHeader{version: v2, encoding: mustEncoding(t, "UTF-8")}
	body := make([]byte, 16)
	_, err := readKeyBlockInfos(bytes.NewReader(body), len(body), h)
	require.Error(t, err)
}

func mustEncoding(t *testing.T, label string) encoding.Encoding {
	t.Helper()
	enc, err := lookupEncoding(label)
	require.NoError(t, err)
	return enc
}
