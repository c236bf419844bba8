// Package fingerprint implements two-tier file identity. Quick() is the
// ~1ns-order necessary-not-sufficient check; Full() computes a
// scheme-tagged content hash, sampling large files via head/tail windows
// plus evenly spaced interior windows instead of hashing the whole file.
// Interior window offsets depend only on the file size (see
// interiorOffsets); no rolling hash is computed over the content.
//
// The scheme identifier is folded into the digest so entries produced under
// different schemes never collide, and cespare/xxhash/v2 mixes window
// digests together cheaply — the same hashing dependency this module uses
// for cache shard selection and the executor's checkpoint checksum.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/wavebuild/wavebuild/internal/types"
)

const (
	wholeFileLimit  = 4 * 1024       // < 4 KiB: hash entire contents
	chunkedLimit    = 1024 * 1024    // < 1 MiB: chunked full hash
	sampledLimit    = 100 * 1024 * 1024
	chunkSize       = 64 * 1024
	headTailWindow  = 256 * 1024
	interiorWindows = 8
	mmapWindows     = 16
	rabinModulus    = 1 << 13 // 2^13
)

// Quick returns the size/mtime/inode identity of path. It never reads file
// contents.
func Quick(path string) (types.QuickStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.QuickStat{}, err
	}
	q := types.QuickStat{Size: info.Size(), ModTime: info.ModTime()}
	if ino, ok := inode(info); ok {
		q.Inode = ino
	}
	return q, nil
}

// Full computes the scheme-appropriate content fingerprint for path. Full
// never consults earlier quick stats; it always re-reads and re-hashes.
// Skipping Full when the quick stats match is left to callers (the
// Incremental Engine does so).
func Full(path string) (types.ContentFingerprint, error) {
	q, err := Quick(path)
	if err != nil {
		return types.ContentFingerprint{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return types.ContentFingerprint{}, err
	}
	defer f.Close()

	size := q.Size
	var scheme types.FingerprintScheme
	var digest [32]byte

	switch {
	case size < wholeFileLimit:
		scheme = types.SchemeWhole
		digest, err = hashWhole(f)
	case size < chunkedLimit:
		scheme = types.SchemeChunked
		digest, err = hashChunked(f)
	case size < sampledLimit:
		scheme = types.SchemeSampled
		digest, err = hashSampled(f, size, interiorWindows)
	default:
		scheme = types.SchemeMapped
		digest, err = hashSampled(f, size, mmapWindows)
	}
	if err != nil {
		return types.ContentFingerprint{}, err
	}

	return types.ContentFingerprint{
		Quick:   q,
		Scheme:  scheme,
		Content: tagScheme(scheme, digest),
	}, nil
}

// tagScheme folds the scheme into the digest by XORing scheme+1 into its
// first byte, so the same raw digest under two schemes yields two
// different tagged digests.
func tagScheme(scheme types.FingerprintScheme, digest [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], digest[:])
	out[0] ^= byte(scheme) + 1
	return out
}

func hashWhole(f *os.File) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func hashChunked(f *os.File) ([32]byte, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return [32]byte{}, err
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// hashSampled reads head+tail windows plus nWindows content-defined interior
// windows and mixes them with xxhash, then folds the mix into a 32-byte
// digest via SHA-256 over the per-window xxhash sums (keeping the strength
// of a cryptographic hash over the final value while avoiding hashing the
// whole file).
func hashSampled(f *os.File, size int64, nWindows int) ([32]byte, error) {
	mixer := sha256.New()

	writeWindow := func(offset int64, length int) error {
		if length <= 0 {
			return nil
		}
		buf := make([]byte, length)
		n, err := f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return err
		}
		buf = buf[:n]
		sum := xxhash.Sum64(buf)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], sum)
		mixer.Write(b[:])
		return nil
	}

	headLen := headTailWindow
	if int64(headLen) > size {
		headLen = int(size)
	}
	if err := writeWindow(0, headLen); err != nil {
		return [32]byte{}, err
	}

	tailLen := headTailWindow
	if int64(tailLen) > size {
		tailLen = int(size)
	}
	tailOffset := size - int64(tailLen)
	if tailOffset < 0 {
		tailOffset = 0
	}
	if err := writeWindow(tailOffset, tailLen); err != nil {
		return [32]byte{}, err
	}

	for _, off := range interiorOffsets(size, nWindows) {
		if err := writeWindow(off, chunkSize); err != nil {
			return [32]byte{}, err
		}
	}

	var out [32]byte
	copy(out[:], mixer.Sum(nil))
	return out, nil
}

// interiorOffsets derives nWindows offsets between the head and tail
// windows: evenly spaced steps, each aligned down to a multiple of
// rabinModulus (8 KiB) and clamped into the interior. The offsets depend
// only on size and window count, not on file content, so Full() is
// reproducible for a fixed scheme and file size.
func interiorOffsets(size int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	usable := size - 2*headTailWindow
	if usable <= int64(chunkSize) {
		return nil
	}
	offsets := make([]int64, 0, n)
	step := usable / int64(n+1)
	for i := 1; i <= n; i++ {
		base := int64(headTailWindow) + step*int64(i)
		// Align down to a rabinModulus boundary. This is a fixed
		// function of base; nothing is read from the content here.
		perturb := (base % rabinModulus)
		off := base - perturb
		if off < int64(headTailWindow) {
			off = int64(headTailWindow)
		}
		if off+int64(chunkSize) > size-int64(headTailWindow) {
			off = size - int64(headTailWindow) - int64(chunkSize)
		}
		offsets = append(offsets, off)
	}
	return offsets
}
