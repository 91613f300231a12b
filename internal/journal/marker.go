package journal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/golang/snappy"
)

// Marker tags, written as the first byte of every framed record on disk.
// See the package doc and SPEC_FULL.md §6.1 for the full on-disk format.
const (
	tagStart byte = 0x00
	tagItem  byte = 0x01
	tagEnd   byte = 0x02
)

// ValueType distinguishes a live value from a tombstone within an Item
// marker. It is encoded as a single byte on disk.
type ValueType uint8

const (
	// Value marks a live, readable record.
	Value ValueType = 0
	// Tombstone marks a key as deleted as of the record's sequence number.
	Tombstone ValueType = 1
)

// CompressionKind selects how an Item's value payload is encoded on disk.
// It is chosen once per batch and stored in the batch's Start marker.
type CompressionKind uint8

const (
	// NoCompression stores value bytes verbatim.
	NoCompression CompressionKind = 0
	// SnappyCompression stores value bytes through snappy.Encode / snappy.Decode.
	SnappyCompression CompressionKind = 1
)

// Item is one logical record within a batch: a partition-scoped key/value
// (or key/tombstone) pair.
type Item struct {
	Partition string
	Key       []byte
	Value     []byte
	Kind      ValueType
}

// Batch is the decoded form of one on-disk `Start · Item* · End` record,
// as produced by Recover or consumed by Shard.WriteBatch.
type Batch struct {
	SeqNo       uint64
	Compression CompressionKind
	Items       []Item
}

// maxReasonableLen caps length-prefixed fields during decode so that a
// corrupted or truncated length varint can never cause an attempt to
// allocate or read an absurd amount of memory. It equals the 4 GiB value
// ceiling (and is far above the 64 KiB key ceiling); those ceilings are
// enforced by the caller, this only guards the decoder against garbage
// bytes.
const maxReasonableLen = 1 << 32

// encodeBatch serializes a complete batch record: Start, each Item, then
// End with its CRC32 computed over every byte written before it.
func encodeBatch(buf []byte, items []Item, seqno uint64, compression CompressionKind) []byte {
	start := len(buf)

	buf = append(buf, tagStart)
	buf = binary.AppendUvarint(buf, uint64(len(items)))
	buf = binary.AppendUvarint(buf, seqno)
	buf = append(buf, byte(compression))

	for _, it := range items {
		buf = appendItem(buf, it, compression)
	}

	crc := crc32.ChecksumIEEE(buf[start:])
	buf = append(buf, tagEnd)
	buf = binary.LittleEndian.AppendUint32(buf, crc)

	return buf
}

func appendItem(buf []byte, it Item, compression CompressionKind) []byte {
	value := it.Value
	if compression == SnappyCompression {
		value = snappy.Encode(nil, value)
	}

	buf = append(buf, tagItem)
	buf = binary.AppendUvarint(buf, uint64(len(it.Partition)))
	buf = append(buf, it.Partition...)
	buf = binary.AppendUvarint(buf, uint64(len(it.Key)))
	buf = append(buf, it.Key...)
	buf = binary.AppendUvarint(buf, uint64(len(value)))
	buf = append(buf, value...)
	buf = append(buf, byte(it.Kind))
	return buf
}

// decodeError signals that a marker could not be parsed from the bytes on
// hand, either because they are malformed or because the buffer simply
// ends mid-marker. Recover treats every decodeError identically: truncate
// and stop (§4.C, rule 3).
type decodeError struct {
	reason string
}

func (e *decodeError) Error() string { return "journal: " + e.reason }

func newDecodeError(format string, args ...any) error {
	return &decodeError{reason: fmt.Sprintf(format, args...)}
}

// startMarker is the decoded Start marker.
type startMarker struct {
	itemCount   uint64
	seqno       uint64
	compression CompressionKind
}

// decodeStart parses a Start marker's payload (the tag byte has already
// been consumed by the caller). Returns the number of bytes consumed from
// b (not counting the tag byte).
func decodeStart(b []byte) (startMarker, int, error) {
	itemCount, n1 := binary.Uvarint(b)
	if n1 <= 0 {
		return startMarker{}, 0, newDecodeError("truncated start marker: item_count")
	}
	rest := b[n1:]

	seqno, n2 := binary.Uvarint(rest)
	if n2 <= 0 {
		return startMarker{}, 0, newDecodeError("truncated start marker: seqno")
	}
	rest = rest[n2:]

	if len(rest) < 1 {
		return startMarker{}, 0, newDecodeError("truncated start marker: compression")
	}

	if itemCount > maxReasonableLen {
		return startMarker{}, 0, newDecodeError("implausible item_count %d", itemCount)
	}

	return startMarker{
		itemCount:   itemCount,
		seqno:       seqno,
		compression: CompressionKind(rest[0]),
	}, n1 + n2 + 1, nil
}

// decodeItem parses an Item marker's payload (the tag byte has already
// been consumed). Returns the number of bytes consumed from b.
func decodeItem(b []byte, compression CompressionKind) (Item, int, error) {
	orig := b

	partLen, n, err := readLen(b)
	if err != nil {
		return Item{}, 0, err
	}
	b = b[n:]
	if uint64(len(b)) < partLen {
		return Item{}, 0, newDecodeError("truncated item: partition name")
	}
	partition := string(b[:partLen])
	b = b[partLen:]

	keyLen, n, err := readLen(b)
	if err != nil {
		return Item{}, 0, err
	}
	b = b[n:]
	if uint64(len(b)) < keyLen {
		return Item{}, 0, newDecodeError("truncated item: key")
	}
	key := append([]byte(nil), b[:keyLen]...)
	b = b[keyLen:]

	valLen, n, err := readLen(b)
	if err != nil {
		return Item{}, 0, err
	}
	b = b[n:]
	if uint64(len(b)) < valLen {
		return Item{}, 0, newDecodeError("truncated item: value")
	}
	rawValue := b[:valLen]
	b = b[valLen:]

	if len(b) < 1 {
		return Item{}, 0, newDecodeError("truncated item: value_type")
	}
	kind := ValueType(b[0])
	if kind != Value && kind != Tombstone {
		return Item{}, 0, newDecodeError("implausible value_type %d", b[0])
	}
	b = b[1:]

	value := rawValue
	if compression == SnappyCompression && len(rawValue) > 0 {
		decoded, err := snappy.Decode(nil, rawValue)
		if err != nil {
			return Item{}, 0, newDecodeError("snappy decode failed: %v", err)
		}
		value = decoded
	} else {
		value = append([]byte(nil), rawValue...)
	}

	consumed := len(orig) - len(b)
	return Item{Partition: partition, Key: key, Value: value, Kind: kind}, consumed, nil
}

// readLen decodes a length-prefixed varint, rejecting implausible values
// so a garbage byte stream can't masquerade as a gigantic length field.
func readLen(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, newDecodeError("truncated length varint")
	}
	if v > maxReasonableLen {
		return 0, 0, newDecodeError("implausible length %d", v)
	}
	return v, n, nil
}

// decodeEnd parses an End marker's payload (the tag byte has already been
// consumed).
func decodeEnd(b []byte) (uint32, int, error) {
	if len(b) < 4 {
		return 0, 0, newDecodeError("truncated end marker")
	}
	return binary.LittleEndian.Uint32(b), 4, nil
}
