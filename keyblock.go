package mdict

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"
)

// BlockEntryInfo is a (compressed, decompressed) size pair, used for
// both key-block-info entries and record-info entries (spec.md §3).
type BlockEntryInfo struct {
	CompressedSize   int
	DecompressedSize int
}

// KeyEntry is one (offset, normalized key text) pair inside a KeyBlock
// (spec.md §3).
type KeyEntry struct {
	Offset uint64
	Text   string
}

// KeyBlock is an ordered run of KeyEntry values; entries are sorted
// under the active comparator and the block's [low, high] range is
// its first and last entry (spec.md §3).
type KeyBlock struct {
	Entries []KeyEntry
}

func (b *KeyBlock) first() string { return b.Entries[0].Text }
func (b *KeyBlock) last() string  { return b.Entries[len(b.Entries)-1].Text }

// v2KeyInfoMagic is the 4-byte magic prefixing the V2 key-block-info
// body (spec.md §4.4).
var v2KeyInfoMagic = [4]byte{0x02, 0x00, 0x00, 0x00}

// Normalizer maps raw key text to its comparison form; the same
// function must be used both when key blocks are built and at every
// query (spec.md §4.7). isResource is true while normalizing MDD
// resource paths.
type Normalizer func(text string, isResource bool) string

// defaultNormalizer reproduces the comparator the Rust original hard-
// codes (original_source/mdict/src/parser.rs's PartialOrd<str> impl
// for KeyEntry): lowercase-fold, then keep only the resulting
// lowercase letters. MDD resource paths (isResource) are returned
// unchanged, so they match exactly. Callers needing different
// semantics inject their own via WithKeyNormalizer.
func defaultNormalizer(text string, isResource bool) string {
	if isResource {
		return text
	}
	var b []rune
	for _, r := range []rune(toLower(text)) {
		if isLowerLetter(r) {
			b = append(b, r)
		}
	}
	return string(b)
}

// readKeyBlockInfos reads and decodes the key-block-info table,
// producing one BlockEntryInfo per key block (spec.md §4.4).
func readKeyBlockInfos(r io.Reader, size int, h *fileHeader) ([]BlockEntryInfo, error) {
	buf, err := readBuf(r, size)
	if err != nil {
		return nil, err
	}

	var table []byte
	switch h.version {
	case v1:
		table = buf
	case v2:
		if len(buf) < 8 || !bytes.Equal(buf[0:4], v2KeyInfoMagic[:]) {
			return nil, &ErrInvalidData{Reason: "key-block-info missing V2 magic"}
		}
		checksum := binary.BigEndian.Uint32(buf[4:8])
		body := buf[8:]

		if h.encrypted&2 != 0 {
			key := keyInfoUnscrambleKey(buf[4:8])
			body = fastDecrypt(body, key)
		}

		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, &ErrInvalidData{Reason: "key-block-info zlib header invalid"}
		}
		decoded, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, &ErrInvalidData{Reason: "key-block-info zlib decompression failed"}
		}
		if err := checkAdler32(decoded, checksum, "key-info"); err != nil {
			return nil, err
		}
		table = decoded
	}

	return decodeKeyBlockInfoTable(table, h)
}

// keyInfoUnscrambleKey derives the key used to fast-unscramble the V2
// key-block-info body when Encrypted bit 1 is set: RIPEMD-128 of the
// 4-byte checksum followed by a little-endian u32 constant 0x3695
// (spec.md §4.4).
func keyInfoUnscrambleKey(checksumBytes []byte) []byte {
	v := make([]byte, 0, 8)
	v = append(v, checksumBytes...)
	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], 0x3695)
	v = append(v, tail[:]...)
	return ripemd128Key(v)
}

// decodeKeyBlockInfoTable parses the packed, repeated-to-exhaustion
// sequence of num_entries/head-key/tail-key/compressed_size/
// decompressed_size records (spec.md §4.4). Only the two sizes are
// retained; head/tail key text is consumed for length only.
func decodeKeyBlockInfoTable(data []byte, h *fileHeader) ([]BlockEntryInfo, error) {
	sr := sizeReaderFor(h.version)
	var infos []BlockEntryInfo
	r := bytes.NewReader(data)

	for r.Len() > 0 {
		if _, err := sr(r); err != nil { // num_entries, unused beyond length
			return nil, &ErrInvalidData{Reason: "truncated key-block-info"}
		}
		if err := skipKeyInfoText(r, h); err != nil {
			return nil, err
		}
		if err := skipKeyInfoText(r, h); err != nil {
			return nil, err
		}
		compressedSize, err := sr(r)
		if err != nil {
			return nil, &ErrInvalidData{Reason: "truncated key-block-info"}
		}
		decompressedSize, err := sr(r)
		if err != nil {
			return nil, &ErrInvalidData{Reason: "truncated key-block-info"}
		}
		infos = append(infos, BlockEntryInfo{
			CompressedSize:   int(compressedSize),
			DecompressedSize: int(decompressedSize),
		})
	}
	return infos, nil
}

// skipKeyInfoText consumes one head/tail key text field: a byte count
// (u8 in V1, u16-BE in V2) followed by that many text units, plus one
// extra trailing-NUL unit in V2 (spec.md §4.4).
func skipKeyInfoText(r *bytes.Reader, h *fileHeader) error {
	var numUnits int
	if h.version == v1 {
		b, err := r.ReadByte()
		if err != nil {
			return &ErrInvalidData{Reason: "truncated key-block-info"}
		}
		numUnits = int(b)
	} else {
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return &ErrInvalidData{Reason: "truncated key-block-info"}
		}
		numUnits = int(binary.BigEndian.Uint16(buf[:])) + 1 // +1: trailing NUL unit
	}
	unitSize := 1
	if h.encoding != nil && !isUTF8(h.encoding) {
		unitSize = 2
	}
	if _, err := r.Seek(int64(numUnits*unitSize), io.SeekCurrent); err != nil {
		return &ErrInvalidData{Reason: "truncated key-block-info"}
	}
	return nil
}

// readKeyBlocks decodes the concatenation of block_num independently
// compressed/encrypted key blocks, each yielding a KeyBlock of ordered
// (offset, text) entries (spec.md §4.4).
func readKeyBlocks(data []byte, h *fileHeader, infos []BlockEntryInfo, normalize Normalizer, isResource bool) ([]KeyBlock, error) {
	blocks := make([]KeyBlock, 0, len(infos))
	pos := 0
	for _, info := range infos {
		if pos+info.CompressedSize > len(data) {
			return nil, &ErrInvalidData{Reason: "truncated key-block data"}
		}
		decoded, err := decodeBlock(data[pos:], info.CompressedSize, info.DecompressedSize, "key-block")
		if err != nil {
			return nil, err
		}
		pos += info.CompressedSize

		entries, err := decodeKeyBlockEntries(decoded, h, normalize, isResource)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, KeyBlock{Entries: entries})
	}
	return blocks, nil
}

// decodeKeyBlockEntries reads the repeated (entry_offset, NUL-
// terminated key_text) layout of one decoded key block (spec.md
// §4.4). isResource is threaded through to normalize so that index-
// time normalization agrees with query-time normalization (spec.md
// §4.7): mdict.go's archive.lookup passes the same isResource flag
// (!isMDX) to normalize at query time.
func decodeKeyBlockEntries(decoded []byte, h *fileHeader, normalize Normalizer, isResource bool) ([]KeyEntry, error) {
	var entries []KeyEntry
	sr := sizeReaderFor(h.version)
	r := bytes.NewReader(decoded)

	utf8 := isUTF8(h.encoding)

	for r.Len() > 0 {
		offset, err := sr(r)
		if err != nil {
			return nil, &ErrInvalidData{Reason: "truncated key block"}
		}
		rest := decoded[len(decoded)-r.Len():]

		var textEnd, consumed int
		if utf8 {
			idx := bytes.IndexByte(rest, 0)
			if idx < 0 {
				return nil, &ErrInvalidData{Reason: "key block text missing NUL terminator"}
			}
			textEnd = idx
			consumed = idx + 1
		} else {
			idx := 0
			for idx+1 < len(rest) {
				if rest[idx] == 0 && rest[idx+1] == 0 {
					break
				}
				idx += 2
			}
			if idx+1 >= len(rest) {
				return nil, &ErrInvalidData{Reason: "key block text missing NUL terminator"}
			}
			textEnd = idx
			consumed = idx + 2
		}

		text, err := decodeText(rest[:textEnd], h.encoding)
		if err != nil {
			return nil, &ErrInvalidData{Reason: "key block text is not valid under its declared encoding"}
		}
		entries = append(entries, KeyEntry{Offset: offset, Text: normalize(text, isResource)})

		if _, err := r.Seek(int64(consumed), io.SeekCurrent); err != nil {
			return nil, &ErrInvalidData{Reason: "truncated key block"}
		}
	}
	return entries, nil
}
