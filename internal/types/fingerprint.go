package types

import (
	"encoding/hex"
	"time"
)

// FingerprintScheme identifies which sampling scheme produced a content
// hash. It is always folded into the digest's first byte (see internal/fingerprint) so
// entries computed under different schemes never collide.
type FingerprintScheme byte

const (
	SchemeWhole    FingerprintScheme = iota // < 4 KiB: whole-file hash
	SchemeChunked                           // < 1 MiB: 64 KiB chunked full hash
	SchemeSampled                           // < 100 MiB: head+tail+8 interior windows
	SchemeMapped                            // >= 100 MiB: head+tail+16 windows, read with ReadAt (not memory-mapped)
)

func (s FingerprintScheme) String() string {
	switch s {
	case SchemeWhole:
		return "whole"
	case SchemeChunked:
		return "chunked"
	case SchemeSampled:
		return "sampled"
	case SchemeMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// QuickStat is the "~1ns order" necessary-not-sufficient identity check:
// size plus modification time, plus inode when the platform exposes one.
type QuickStat struct {
	Size    int64
	ModTime time.Time
	Inode   uint64 // 0 when unavailable
}

// Equal compares two QuickStats for the purpose of the "equal quick => skip
// full" shortcut. It compares Size and ModTime only; Inode is not compared.
func (q QuickStat) Equal(o QuickStat) bool {
	return q.Size == o.Size && q.ModTime.Equal(o.ModTime)
}

// ContentFingerprint is the two-tier identity of a source file: the quick
// stat plus the scheme-tagged content hash.
type ContentFingerprint struct {
	Quick   QuickStat
	Scheme  FingerprintScheme
	Content [32]byte // scheme byte is folded into Content[0]'s derivation, see internal/fingerprint
}

// Equal compares content fingerprints. A cache hit is never returned for
// entries whose scheme differs from the current scheme, even if the raw
// digest bytes happened to collide.
func (c ContentFingerprint) Equal(o ContentFingerprint) bool {
	return c.Scheme == o.Scheme && c.Content == o.Content
}

// ActionType is the closed set of cacheable action kinds.
type ActionType string

const (
	ActionCompile ActionType = "compile"
	ActionLink    ActionType = "link"
	ActionPackage ActionType = "package"
	ActionTest    ActionType = "test"
	ActionCustom  ActionType = "custom"
)

// ActionID identifies one cacheable unit of work. InputHash is computed by
// the caller (typically the Handler via the Incremental Engine) over tool
// identity + version + flags + declared env subset + sorted input
// fingerprints + sorted transitive dep fingerprints; ActionID itself is
// just the carrier.
type ActionID struct {
	TargetID TargetID
	Type     ActionType
	SubID    string // e.g. source filename for per-file compile
	Input    [32]byte
}

// Key renders the ActionID as the string key used by the action cache
// (internal/cache) — stable across process runs since it's derived only
// from the struct's own fields, never from memory addresses.
func (a ActionID) Key() string {
	return a.TargetID.String() + "|" + string(a.Type) + "|" + a.SubID + "|" + hex.EncodeToString(a.Input[:])
}

// ArtifactID is the content hash of an artifact's bytes, used as the
// content-addressed store key.
type ArtifactID [32]byte
