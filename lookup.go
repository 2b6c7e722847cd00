package mdict

import "bytes"

// recordOffset is the derived physical location of an entry's payload,
// translated from its logical offset into the concatenated
// decompressed record region (spec.md §3).
type recordOffset struct {
	bufOffset   uint64 // sum of compressed_size of preceding record blocks
	blockOffset uint64 // entry offset minus sum of preceding decompressed_size
	recordSize  int    // compressed size of the containing block
	decompSize  int    // decompressed size of the containing block
}

// bisectBlocks performs the block-level bisect of spec.md §4.6 step 2:
// a block compares less than word if its last entry sorts before word,
// greater if its first entry sorts after word, and equal otherwise
// (word lies inside, or the block's endpoints straddle word). Returns
// -1 if no block matches.
func bisectBlocks(blocks []KeyBlock, word string) int {
	lo, hi := 0, len(blocks)
	for lo < hi {
		mid := (lo + hi) / 2
		b := &blocks[mid]
		switch {
		case b.first() > word:
			hi = mid
		case b.last() < word:
			lo = mid + 1
		default:
			return mid
		}
	}
	return -1
}

// bisectEntries performs the entry-level bisect of spec.md §4.6 step 3
// within a single block's already-normalized entries. Returns -1 if
// word matches no entry.
func bisectEntries(entries []KeyEntry, word string) int {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		e := &entries[mid]
		switch {
		case e.Text > word:
			hi = mid
		case e.Text < word:
			lo = mid + 1
		default:
			return mid
		}
	}
	return -1
}

// translateOffset walks recordsInfo accumulating blockOffset (sum of
// decompressed_size) and bufOffset (sum of compressed_size) until it
// finds the record block containing entry.Offset (spec.md §4.6 step 4,
// §3 "RecordOffset").
func translateOffset(recordsInfo []BlockEntryInfo, entryOffset uint64) (recordOffset, bool) {
	var blockOffset, bufOffset uint64
	for _, info := range recordsInfo {
		decompSize := uint64(info.DecompressedSize)
		if entryOffset < blockOffset+decompSize {
			return recordOffset{
				bufOffset:   bufOffset,
				blockOffset: entryOffset - blockOffset,
				recordSize:  info.CompressedSize,
				decompSize:  info.DecompressedSize,
			}, true
		}
		blockOffset += decompSize
		bufOffset += uint64(info.CompressedSize)
	}
	return recordOffset{}, false
}

// sliceMDXPayload extracts a NUL-terminated text payload starting at
// blockOffset within a decoded record block. The terminator is the
// first zero byte after blockOffset, and the byte immediately before
// it is dropped as well, whatever the payload encoding; per spec.md
// §9 this accounts for the authoring tool's terminator sitting one
// byte short of true UTF-16LE code-unit alignment (ported byte-for-byte from original_source/mdict/src/parser.rs's
// slice_to_string — this is the spec's flagged open question,
// resolved per DESIGN.md).
func sliceMDXPayload(block []byte, blockOffset uint64) ([]byte, error) {
	if blockOffset > uint64(len(block)) {
		return nil, &ErrInvalidData{Reason: "record offset past end of block"}
	}
	rest := block[blockOffset:]
	idx := bytes.IndexByte(rest, 0)
	if idx < 0 {
		return nil, &ErrInvalidData{Reason: "record payload missing NUL terminator"}
	}
	if idx == 0 {
		return rest[:0], nil
	}
	return rest[:idx-1], nil
}

// sliceMDDPayload extracts a binary resource payload: everything from
// blockOffset to the next entry's offset within the same block, or
// the block end if this is the last entry (spec.md §4.6 step 6).
func sliceMDDPayload(block []byte, blockOffset, nextOffset uint64, hasNext bool) ([]byte, error) {
	if blockOffset > uint64(len(block)) {
		return nil, &ErrInvalidData{Reason: "record offset past end of block"}
	}
	end := uint64(len(block))
	if hasNext && nextOffset < end {
		end = nextOffset
	}
	if end < blockOffset {
		return nil, &ErrInvalidData{Reason: "record offsets out of order"}
	}
	return block[blockOffset:end], nil
}
