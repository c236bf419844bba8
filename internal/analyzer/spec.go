// Package analyzer implements per-language import extraction and
// import-to-target resolution. LanguageSpec is data, not code — new
// languages are registered as records, not new switch arms.
package analyzer

import (
	"regexp"

	"github.com/wavebuild/wavebuild/internal/types"
)

// ImportKind classifies where an import resolves to.
type ImportKind int

const (
	ImportUnknown ImportKind = iota
	ImportStdlib
	ImportThirdParty
	ImportRelative
	ImportAbsolute
)

func (k ImportKind) String() string {
	switch k {
	case ImportStdlib:
		return "stdlib"
	case ImportThirdParty:
		return "third_party"
	case ImportRelative:
		return "relative"
	case ImportAbsolute:
		return "absolute"
	default:
		return "unknown"
	}
}

// Import is one extracted import statement, order-preserved within a file.
type Import struct {
	Raw  string // the literal import path/name as written
	Kind ImportKind
	Line int
}

// Extractor produces the ordered Import list for one source file's
// content. AST-backed extractors (Go via tree-sitter, JS/TS via go-fast)
// and the regex default both implement this so the Resolver never knows
// which strategy served a given language.
type Extractor interface {
	Extract(path string, content []byte) ([]Import, error)
}

// LanguageSpec is the per-language data record import extraction needs:
// extensions, an import-line pattern, a classifier, and an optional
// manifest filename for dependency-manager integration. ImportsAnywhere
// opts a language out of the 64 KiB import-block read cap.
type LanguageSpec struct {
	Language        types.Language
	Extensions      []string
	ImportPattern   *regexp.Regexp // the first non-empty capture group is the raw import
	Classify        func(raw string) ImportKind
	ManifestFile    string
	ImportsAnywhere bool
	Extractor       Extractor // nil uses the shared regex default
}

// readWindow is the bound on bytes read for regex-based extraction: the
// first 64 KiB is sufficient for any realistic import block, unless the
// LanguageSpec opts out via ImportsAnywhere.
const readWindow = 64 * 1024
