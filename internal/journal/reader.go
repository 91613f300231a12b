package journal

import "hash/crc32"

// Recover reconstructs the ordered sequence of complete, checksum-valid
// batches from a shard file's raw bytes, tolerating arbitrary corruption,
// truncation, or out-of-context markers appended to the tail.
//
// # Contract (spec.md §4.C — tests depend on this exactly)
//
//  1. Markers are parsed sequentially starting at offset 0.
//  2. A batch is only recognized as the pattern `Start → item_count
//     Items → End` with a matching CRC32.
//  3. The instant the parser hits anything that doesn't fit that pattern —
//     an unexpected tag, a truncated marker, an implausible length field,
//     or an End whose checksum fails — it discards everything from the
//     start of that in-progress batch to end-of-file and returns,
//     successfully, every batch completed before it.
//  4. Trailing bytes that don't even form a recognizable tag are handled
//     identically: stop, keep what came before.
//  5. A stray marker appearing where a Start was expected (e.g. a lone
//     End, a lone Item, or a second Start before the first one's End) is
//     just another way to fail rule 2 — it invalidates only the trailing
//     region after the last complete batch.
//
// Recover never returns an error: by design, tail corruption is an
// expected, recoverable condition (a crash mid-append), not a defect to
// surface to the caller.
func Recover(data []byte) []Batch {
	var batches []Batch
	offset := 0

	for offset < len(data) {
		batchStart := offset

		if data[offset] != tagStart {
			// Garbage, or a stray Item/End marker with no preceding Start:
			// the remainder of the file is an incomplete/corrupt trailing
			// region. Stop here; everything before it already landed in
			// batches.
			break
		}
		offset++

		sm, n, err := decodeStart(data[offset:])
		if err != nil {
			break
		}
		offset += n

		items := make([]Item, 0, sm.itemCount)
		complete := true

		for i := uint64(0); i < sm.itemCount; i++ {
			if offset >= len(data) || data[offset] != tagItem {
				complete = false
				break
			}
			offset++

			item, n2, err := decodeItem(data[offset:], sm.compression)
			if err != nil {
				complete = false
				break
			}
			offset += n2
			items = append(items, item)
		}
		if !complete {
			offset = batchStart
			break
		}

		// Bytes from the Start tag through the last Item (inclusive) are
		// the CRC's hash domain.
		hashEnd := offset

		if offset >= len(data) || data[offset] != tagEnd {
			offset = batchStart
			break
		}
		offset++

		crcWant, n3, err := decodeEnd(data[offset:])
		if err != nil {
			offset = batchStart
			break
		}
		offset += n3

		if crc32.ChecksumIEEE(data[batchStart:hashEnd]) != crcWant {
			offset = batchStart
			break
		}

		batches = append(batches, Batch{
			SeqNo:       sm.seqno,
			Compression: sm.compression,
			Items:       items,
		})
	}

	return batches
}
