// Package cache implements the target cache, action cache and dependency
// cache, sharing one on-disk binary format and a hybrid age/count/size
// eviction policy. The on-disk layout follows the CRC-checked record
// framing style in internal/cache/metrics_cache.go (length-prefixed
// records with a checksum, corruption affecting only the one record),
// generalized to an explicit magic-header + varint + CRC-32C framing.
package cache

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/wavebuild/wavebuild/internal/wverrors"
)

// magic is the four-byte header identifying a waveforge cache file:
// [B][L][D][R] (BuiLD cache Record).
var magic = [4]byte{'B', 'L', 'D', 'R'}

const formatVersion uint16 = 1

// fileHeader is the 8-byte on-disk header: magic + version + flags.
type fileHeader struct {
	Version uint16
	Flags   uint16
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func writeHeader(w io.Writer, h fileHeader) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[0:2], h.Version)
	binary.LittleEndian.PutUint16(buf[2:4], h.Flags)
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (fileHeader, error) {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return fileHeader{}, err
	}
	if got != magic {
		return fileHeader{}, wverrors.New(wverrors.KindCache, "corrupted header: bad magic")
	}
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fileHeader{}, err
	}
	return fileHeader{
		Version: binary.LittleEndian.Uint16(buf[0:2]),
		Flags:   binary.LittleEndian.Uint16(buf[2:4]),
	}, nil
}

// writeRecord frames payload as varint-length + payload + CRC-32C(payload).
func writeRecord(w *bufio.Writer, payload []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	crc := crc32.Checksum(payload, crcTable)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	_, err := w.Write(crcBuf[:])
	return err
}

// readRecord reads one frame. On CRC mismatch or a truncated frame it
// returns errCorruptRecord so the caller can drop just this record and
// keep reading — corruption invalidates only the affected record.
func readRecord(r *bufio.Reader) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err // EOF or stream corruption; caller stops the file
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errCorruptRecord
	}
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, errCorruptRecord
	}
	want := binary.LittleEndian.Uint32(crcBuf[:])
	got := crc32.Checksum(payload, crcTable)
	if want != got {
		return nil, errCorruptRecord
	}
	return payload, nil
}

type corruptRecordError struct{}

func (corruptRecordError) Error() string { return "corrupt cache record" }

var errCorruptRecord = corruptRecordError{}

// IsCorruptRecord reports whether err signals a single bad record (as
// opposed to a clean EOF or a read failure further up the stack).
func IsCorruptRecord(err error) bool {
	_, ok := err.(corruptRecordError)
	return ok
}
