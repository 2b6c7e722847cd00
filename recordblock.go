package mdict

import "io"

// readRecordInfos reads the record-block index: a size-typed header
// of (num_records, num_entries, record_info_size, record_data_size)
// followed by num_records (compressed_size, decompressed_size) pairs.
// num_entries and the two totals are consumed for validation intent
// only, matching original_source/mdict/src/parser.rs's
// read_record_blocks (spec.md §4.5).
func readRecordInfos(r io.Reader, v version) ([]BlockEntryInfo, error) {
	sr := sizeReaderFor(v)

	numRecords, err := sr(r)
	if err != nil {
		return nil, err
	}
	if _, err := sr(r); err != nil { // num_entries, unused
		return nil, err
	}
	if _, err := sr(r); err != nil { // record_info_size, unused
		return nil, err
	}
	if _, err := sr(r); err != nil { // record_data_size, unused
		return nil, err
	}

	infos := make([]BlockEntryInfo, 0, numRecords)
	for i := uint64(0); i < numRecords; i++ {
		compressedSize, err := sr(r)
		if err != nil {
			return nil, &ErrInvalidData{Reason: "truncated record-info table"}
		}
		decompressedSize, err := sr(r)
		if err != nil {
			return nil, &ErrInvalidData{Reason: "truncated record-info table"}
		}
		infos = append(infos, BlockEntryInfo{
			CompressedSize:   int(compressedSize),
			DecompressedSize: int(decompressedSize),
		})
	}
	return infos, nil
}
