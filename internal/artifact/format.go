package artifact

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"hash/crc32"
	"io"

	"github.com/wavebuild/wavebuild/internal/wverrors"
)

// The sidecar LRU index uses the same magic-header + varint-length +
// CRC-32C record framing as internal/cache. It's a separate small
// implementation rather than an exported cache helper, since
// internal/cache's framing is deliberately unexported — duplicating ~30
// lines of framing code keeps the two packages independently buildable,
// rather than one reaching into the other's internals for a
// format both happen to share by spec mandate, not by shared code.
var indexMagic = [4]byte{'A', 'I', 'D', 'X'}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func writeHeader(w io.Writer) error {
	_, err := w.Write(indexMagic[:])
	return err
}

func readHeader(r io.Reader) (struct{}, error) {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return struct{}{}, err
	}
	if got != indexMagic {
		return struct{}{}, wverrors.New(wverrors.KindCache, "corrupted artifact index header: bad magic")
	}
	return struct{}{}, nil
}

func writeRecord(w *bufio.Writer, payload []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.Checksum(payload, crcTable))
	_, err := w.Write(crcBuf[:])
	return err
}

func readRecord(r *bufio.Reader) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, corruptRecordError{}
	}
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, corruptRecordError{}
	}
	if binary.LittleEndian.Uint32(crcBuf[:]) != crc32.Checksum(payload, crcTable) {
		return nil, corruptRecordError{}
	}
	return payload, nil
}

type corruptRecordError struct{}

func (corruptRecordError) Error() string { return "corrupt artifact index record" }

func isCorruptRecord(err error) bool {
	_, ok := err.(corruptRecordError)
	return ok
}

func encodeIndexEntry(e indexEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeIndexEntry(data []byte, e *indexEntry) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}
