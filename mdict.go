package mdict

import (
	"io"
	"os"

	"golang.org/x/text/encoding"
)

// archive holds one loaded MDX or MDD container: the decoded key-
// block index, the record-block size table, and the file region where
// record bytes begin (spec.md §3 "Engine handle"). A Dict owns one
// archive for its primary MDX and zero or more for MDD siblings.
type archive struct {
	isMDX bool

	source io.ReadSeeker
	file   *os.File // non-nil only if this archive owns the file handle

	encoding encoding.Encoding
	title    string

	keyBlocks   []KeyBlock
	recordsInfo []BlockEntryInfo

	recordBlockOffset int64

	normalize Normalizer

	cache map[uint64][]byte // bufOffset -> decoded record block; nil disables caching
}

// loadArchive runs the full header → key-block-info → key-blocks →
// record-info pipeline of spec.md §2 over r, producing a Ready
// archive or leaving no partial state on error (spec.md §4.6 "state
// machine").
func loadArchive(r io.ReadSeeker, isMDX bool, normalize Normalizer, cacheEnabled bool) (*archive, error) {
	h, err := readHeader(r, !isMDX)
	if err != nil {
		return nil, err
	}

	kbh, err := readKeyBlockHeader(r, h.version)
	if err != nil {
		return nil, err
	}

	keyBlockInfos, err := readKeyBlockInfos(r, kbh.blockInfoSize, h)
	if err != nil {
		return nil, err
	}

	keyBlockData, err := readBuf(r, kbh.keyBlockSize)
	if err != nil {
		return nil, err
	}
	keyBlocks, err := readKeyBlocks(keyBlockData, h, keyBlockInfos, normalize, !isMDX)
	if err != nil {
		return nil, err
	}

	recordsInfo, err := readRecordInfos(r, h.version)
	if err != nil {
		return nil, err
	}

	recordBlockOffset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	a := &archive{
		isMDX:             isMDX,
		source:            r,
		encoding:          h.encoding,
		title:             h.title,
		keyBlocks:         keyBlocks,
		recordsInfo:       recordsInfo,
		recordBlockOffset: recordBlockOffset,
		normalize:         normalize,
	}
	if cacheEnabled {
		a.cache = make(map[uint64][]byte)
	}
	return a, nil
}

// fetchRecordBlock returns the decoded bytes of the record block at
// ro.bufOffset, filling the cache on miss when caching is enabled
// (spec.md §4.6 step 5, §5 "Record-block cache discipline").
func (a *archive) fetchRecordBlock(ro recordOffset) ([]byte, error) {
	if a.cache != nil {
		if decoded, ok := a.cache[ro.bufOffset]; ok {
			return decoded, nil
		}
	}

	if _, err := a.source.Seek(a.recordBlockOffset+int64(ro.bufOffset), io.SeekStart); err != nil {
		return nil, err
	}
	raw, err := readBuf(a.source, ro.recordSize)
	if err != nil {
		return nil, err
	}
	decoded, err := decodeBlock(raw, ro.recordSize, ro.decompSize, "record-block")
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache[ro.bufOffset] = decoded
	}
	return decoded, nil
}

// lookup runs the full query path of spec.md §4.6: normalize, block
// bisect, entry bisect, offset translation, on-demand block decode,
// payload slicing. The archive's own isMDX flag selects the
// normalization variant (isResource is !isMDX) and the slicing rule:
// NUL-terminated text for MDX, next-offset-bounded bytes for MDD.
func (a *archive) lookup(word string) ([]byte, bool, error) {
	word = a.normalize(word, !a.isMDX)

	blockIdx := bisectBlocks(a.keyBlocks, word)
	if blockIdx < 0 {
		return nil, false, nil
	}
	block := &a.keyBlocks[blockIdx]

	entryIdx := bisectEntries(block.Entries, word)
	if entryIdx < 0 {
		return nil, false, nil
	}
	entry := block.Entries[entryIdx]

	ro, ok := translateOffset(a.recordsInfo, entry.Offset)
	if !ok {
		return nil, false, &ErrInvalidData{Reason: "key entry offset has no containing record block"}
	}

	decoded, err := a.fetchRecordBlock(ro)
	if err != nil {
		return nil, false, err
	}

	if a.isMDX {
		payload, err := sliceMDXPayload(decoded, ro.blockOffset)
		if err != nil {
			return nil, false, err
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, true, nil
	}

	nextOffset, hasNext := a.nextOffsetInSameRecordBlock(blockIdx, entryIdx, ro)
	payload, err := sliceMDDPayload(decoded, ro.blockOffset, nextOffset, hasNext)
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true, nil
}

// nextOffsetInSameRecordBlock finds the entry immediately following
// (blockIdx, entryIdx) in key order and, only if it maps into the same
// record block, returns its block-relative offset to bound an MDD
// payload (spec.md §4.6 step 6). If the next entry falls in a
// different record block (or there is none), the caller falls back to
// "remainder of block", which spec.md explicitly allows.
func (a *archive) nextOffsetInSameRecordBlock(blockIdx, entryIdx int, ro recordOffset) (uint64, bool) {
	var next *KeyEntry
	if entryIdx+1 < len(a.keyBlocks[blockIdx].Entries) {
		next = &a.keyBlocks[blockIdx].Entries[entryIdx+1]
	} else if blockIdx+1 < len(a.keyBlocks) && len(a.keyBlocks[blockIdx+1].Entries) > 0 {
		next = &a.keyBlocks[blockIdx+1].Entries[0]
	}
	if next == nil {
		return 0, false
	}
	nextRO, ok := translateOffset(a.recordsInfo, next.Offset)
	if !ok || nextRO.bufOffset != ro.bufOffset {
		return 0, false
	}
	return nextRO.blockOffset, true
}

func (a *archive) close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}
