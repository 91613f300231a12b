package journal

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoItemBatch() []Item {
	return []Item{
		{Partition: "default", Key: []byte("abc"), Value: []byte("def"), Kind: Value},
		{Partition: "default", Key: []byte("yxc"), Value: []byte("ghj"), Kind: Value},
	}
}

func appendRaw(t *testing.T, path string, data []byte) {
	t.Helper()
	sh, err := FromFile(path)
	require.NoError(t, err)
	_, err = sh.file.Write(data)
	require.NoError(t, err)
	require.NoError(t, sh.file.Sync())
	require.NoError(t, sh.Close())
}

// S1: truncation after a corrupt, non-marker suffix.
func TestRecoverTruncatesCorruptSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0")

	sh, err := CreateNew(path)
	require.NoError(t, err)
	require.NoError(t, sh.WriteBatch(twoItemBatch(), 0, NoCompression))
	require.NoError(t, sh.Close())

	garbage := []byte("09pmu35w3a9mp53bao9upw3ab5up")

	for _, repeats := range []int{5, 10} {
		for i := 0; i < repeats; i++ {
			appendRaw(t, path, garbage)
		}

		data, err := (&Shard{path: path}).ReadAll()
		require.NoError(t, err)

		got := Recover(data)
		require.Len(t, got, 1)
		assert.Equal(t, twoItemBatch(), got[0].Items)
	}
}

// S2: extraneous Start markers appended after a committed batch.
func TestRecoverTruncatesStrayStartMarkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0")

	sh, err := CreateNew(path)
	require.NoError(t, err)
	require.NoError(t, sh.WriteBatch(twoItemBatch(), 0, NoCompression))
	require.NoError(t, sh.Close())

	var stray []byte
	stray = append(stray, tagStart)
	stray = binary.AppendUvarint(stray, 2)
	stray = binary.AppendUvarint(stray, 64)
	stray = append(stray, byte(NoCompression))

	for _, repeats := range []int{5, 10} {
		for i := 0; i < repeats; i++ {
			appendRaw(t, path, stray)
		}
		data, err := (&Shard{path: path}).ReadAll()
		require.NoError(t, err)
		got := Recover(data)
		require.Len(t, got, 1)
		assert.Equal(t, twoItemBatch(), got[0].Items)
	}
}

// S3: extraneous End markers.
func TestRecoverTruncatesStrayEndMarkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0")

	sh, err := CreateNew(path)
	require.NoError(t, err)
	require.NoError(t, sh.WriteBatch(twoItemBatch(), 0, NoCompression))
	require.NoError(t, sh.Close())

	var stray []byte
	stray = append(stray, tagEnd)
	stray = binary.LittleEndian.AppendUint32(stray, 5432)

	for i := 0; i < 5; i++ {
		appendRaw(t, path, stray)
	}
	data, err := (&Shard{path: path}).ReadAll()
	require.NoError(t, err)
	got := Recover(data)
	require.Len(t, got, 1)
	assert.Equal(t, twoItemBatch(), got[0].Items)
}

// S4: a stray Item marker outside any batch.
func TestRecoverTruncatesStrayItemMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0")

	sh, err := CreateNew(path)
	require.NoError(t, err)
	require.NoError(t, sh.WriteBatch(twoItemBatch(), 0, NoCompression))
	require.NoError(t, sh.Close())

	stray := appendItem(nil, Item{Partition: "default", Key: []byte("zzz"), Value: nil, Kind: Tombstone}, NoCompression)

	for i := 0; i < 5; i++ {
		appendRaw(t, path, stray)
	}
	data, err := (&Shard{path: path}).ReadAll()
	require.NoError(t, err)
	got := Recover(data)
	require.Len(t, got, 1)
	assert.Equal(t, twoItemBatch(), got[0].Items)
}

func TestRecoverEmptyFile(t *testing.T) {
	assert.Empty(t, Recover(nil))
}

func TestRecoverMultipleValidBatches(t *testing.T) {
	var buf []byte
	buf = encodeBatch(buf, twoItemBatch(), 0, NoCompression)
	buf = encodeBatch(buf, []Item{{Partition: "p2", Key: []byte("k"), Value: []byte("v"), Kind: Value}}, 1, NoCompression)

	got := Recover(buf)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(0), got[0].SeqNo)
	assert.Equal(t, uint64(1), got[1].SeqNo)
}

func TestRecoverBitFlipInChecksumTruncates(t *testing.T) {
	buf := encodeBatch(nil, twoItemBatch(), 0, NoCompression)
	buf[len(buf)-1] ^= 0xFF // corrupt one CRC byte

	assert.Empty(t, Recover(buf))
}

func TestRecoverPreservesPriorBatchWhenLastIsCorrupt(t *testing.T) {
	var buf []byte
	buf = encodeBatch(buf, twoItemBatch(), 0, NoCompression)
	goodLen := len(buf)

	second := encodeBatch(nil, twoItemBatch(), 1, NoCompression)
	second[len(second)-1] ^= 0xFF
	buf = append(buf, second...)

	got := Recover(buf)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(0), got[0].SeqNo)
	assert.Less(t, goodLen, len(buf))
}

func TestRecoverSnappyCompressedBatch(t *testing.T) {
	items := []Item{{Partition: "p", Key: []byte("k"), Value: bytes.Repeat([]byte("v"), 200), Kind: Value}}
	buf := encodeBatch(nil, items, 7, SnappyCompression)

	got := Recover(buf)
	require.Len(t, got, 1)
	assert.Equal(t, items, got[0].Items)
	assert.Equal(t, SnappyCompression, got[0].Compression)
}
