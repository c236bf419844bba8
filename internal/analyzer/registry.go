package analyzer

import (
	"regexp"
	"strings"

	"github.com/wavebuild/wavebuild/internal/types"
)

// Registry holds one LanguageSpec per Language and resolves extensions to
// the spec that handles them.
type Registry struct {
	specs   map[types.Language]LanguageSpec
	byExt   map[string]types.Language
}

// NewRegistry builds the default registry: the two AST-backed extractors
// (Go via tree-sitter, JS/TS via go-fast) plus regex LanguageSpecs for
// every other language the rest of the example pack's tree-sitter
// grammars could plausibly cover (c-sharp, cpp, java, php, python, rust) —
// those languages fall back to the regex default in this module because
// wiring their tree-sitter grammars is a Non-goal-adjacent cost without a
// handler that consumes AST-level detail beyond import lines (see
// SPEC_FULL.md §2's justification for leaving those grammars unwired).
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[types.Language]LanguageSpec), byExt: make(map[string]types.Language)}

	r.register(goSpec())
	r.register(javascriptSpec())
	r.register(typescriptSpec())
	r.register(pythonSpec())
	r.register(javaSpec())
	r.register(csharpSpec())
	r.register(cppSpec())
	r.register(rustSpec())
	r.register(phpSpec())
	r.register(genericSpec())

	return r
}

func (r *Registry) register(spec LanguageSpec) {
	r.specs[spec.Language] = spec
	for _, ext := range spec.Extensions {
		r.byExt[ext] = spec.Language
	}
}

// SpecForPath returns the LanguageSpec covering path's extension, falling
// back to the generic regex spec when the extension is unrecognized.
func (r *Registry) SpecForPath(path string) LanguageSpec {
	ext := extOf(path)
	if lang, ok := r.byExt[ext]; ok {
		return r.specs[lang]
	}
	return r.specs[types.LangGeneric]
}

func (r *Registry) Spec(lang types.Language) (LanguageSpec, bool) {
	s, ok := r.specs[lang]
	return s, ok
}

// ExtractorFor returns the configured Extractor for spec, defaulting to
// the shared regex extractor when no AST-backed one is plugged in.
func ExtractorFor(spec LanguageSpec) Extractor {
	if spec.Extractor != nil {
		return spec.Extractor
	}
	return newRegexExtractor(spec)
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i:])
}

func goSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangGo,
		Extensions:    []string{".go"},
		ImportPattern: regexp.MustCompile(`^\s*"([^"]+)"\s*$`),
		ManifestFile:  "go.mod",
		Classify: func(raw string) ImportKind {
			if strings.HasPrefix(raw, ".") {
				return ImportRelative
			}
			if !strings.Contains(raw, ".") {
				return ImportStdlib
			}
			return ImportThirdParty
		},
		Extractor: newGoTreeSitterExtractor(),
	}
}

func javascriptSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangJavaScript,
		Extensions:    []string{".js", ".jsx", ".mjs", ".cjs"},
		ImportPattern: jsImportPattern,
		ManifestFile:  "package.json",
		Classify:      classifyJS,
		Extractor:     newGoFastExtractor(),
	}
}

func typescriptSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangTypeScript,
		Extensions:    []string{".ts", ".tsx"},
		ImportPattern: jsImportPattern,
		ManifestFile:  "package.json",
		Classify:      classifyJS,
		Extractor:     newGoFastExtractor(),
	}
}

var jsImportPattern = regexp.MustCompile(`(?:import\s+(?:[\w*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\))`)

func classifyJS(raw string) ImportKind {
	if strings.HasPrefix(raw, ".") {
		return ImportRelative
	}
	if strings.HasPrefix(raw, "/") {
		return ImportAbsolute
	}
	return ImportThirdParty
}

func pythonSpec() LanguageSpec {
	return LanguageSpec{
		Language:        types.LangPython,
		Extensions:      []string{".py"},
		ImportPattern:   regexp.MustCompile(`^\s*(?:import\s+([\w.]+)|from\s+([\w.]+)\s+import)`),
		ManifestFile:    "requirements.txt",
		ImportsAnywhere: false,
		Classify: func(raw string) ImportKind {
			if strings.HasPrefix(raw, ".") {
				return ImportRelative
			}
			if isPythonStdlib(raw) {
				return ImportStdlib
			}
			return ImportThirdParty
		},
	}
}

var pythonStdlibPrefixes = map[string]struct{}{
	"os": {}, "sys": {}, "re": {}, "json": {}, "typing": {}, "collections": {},
	"itertools": {}, "functools": {}, "pathlib": {}, "subprocess": {}, "io": {},
	"asyncio": {}, "unittest": {}, "logging": {}, "datetime": {}, "math": {},
	"abc": {}, "dataclasses": {}, "enum": {}, "threading": {},
}

func isPythonStdlib(raw string) bool {
	root := raw
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		root = raw[:i]
	}
	_, ok := pythonStdlibPrefixes[root]
	return ok
}

func javaSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangJava,
		Extensions:    []string{".java"},
		ImportPattern: regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`),
		ManifestFile:  "pom.xml",
		Classify: func(raw string) ImportKind {
			if strings.HasPrefix(raw, "java.") || strings.HasPrefix(raw, "javax.") {
				return ImportStdlib
			}
			return ImportThirdParty
		},
	}
}

func csharpSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangCSharp,
		Extensions:    []string{".cs"},
		ImportPattern: regexp.MustCompile(`^\s*using\s+(?:static\s+)?([\w.]+)\s*;`),
		ManifestFile:  "*.csproj",
		Classify: func(raw string) ImportKind {
			if strings.HasPrefix(raw, "System") {
				return ImportStdlib
			}
			return ImportThirdParty
		},
	}
}

func cppSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangCPP,
		Extensions:    []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp"},
		ImportPattern: regexp.MustCompile(`^\s*#include\s*[<"]([^>"]+)[>"]`),
		ManifestFile:  "CMakeLists.txt",
		Classify: func(raw string) ImportKind {
			if !strings.Contains(raw, "/") && !strings.Contains(raw, ".") {
				return ImportStdlib
			}
			return ImportThirdParty
		},
	}
}

func rustSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangRust,
		Extensions:    []string{".rs"},
		ImportPattern: regexp.MustCompile(`^\s*use\s+([\w:]+)`),
		ManifestFile:  "Cargo.toml",
		Classify: func(raw string) ImportKind {
			if strings.HasPrefix(raw, "crate::") || strings.HasPrefix(raw, "self::") || strings.HasPrefix(raw, "super::") {
				return ImportRelative
			}
			if strings.HasPrefix(raw, "std::") || strings.HasPrefix(raw, "core::") {
				return ImportStdlib
			}
			return ImportThirdParty
		},
	}
}

func phpSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangPHP,
		Extensions:    []string{".php", ".phtml"},
		ImportPattern: regexp.MustCompile(`^\s*use\s+([\w\\]+)\s*;`),
		ManifestFile:  "composer.json",
		Classify: func(raw string) ImportKind {
			return ImportThirdParty
		},
	}
}

// genericSpec is the fallback for unrecognized extensions: it matches
// nothing, so scanning never crashes on an unknown file kind — it just
// produces zero imports for it.
func genericSpec() LanguageSpec {
	return LanguageSpec{
		Language:      types.LangGeneric,
		Extensions:    nil,
		ImportPattern: regexp.MustCompile(`$^`), // never matches
	}
}
