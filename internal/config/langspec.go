package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"

	"github.com/wavebuild/wavebuild/internal/analyzer"
	"github.com/wavebuild/wavebuild/internal/types"
)

// languageOverride is the TOML shape of one language-spec override file —
// the subset of analyzer.LanguageSpec that's plain data rather than a
// compiled regexp or a func value. Follows build_artifact_detector.go's
// toml.Unmarshal-into-a-plain-struct pattern rather than introspecting a
// generic map.
type languageOverride struct {
	Language        string   `toml:"language"`
	Extensions      []string `toml:"extensions"`
	ImportPattern   string   `toml:"import_pattern"`
	ManifestFile    string   `toml:"manifest_file"`
	ImportsAnywhere bool     `toml:"imports_anywhere"`
}

// LoadLanguageSpecOverrides reads every `*.toml` file directly under dir
// and returns the resulting LanguageSpec overrides keyed by language. A
// missing directory is not an error — language-spec overrides are
// optional.
func LoadLanguageSpecOverrides(dir string) (map[types.Language]analyzer.LanguageSpec, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read language-spec dir %s: %w", dir, err)
	}

	out := make(map[types.Language]analyzer.LanguageSpec)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read language-spec override %s: %w", path, err)
		}
		var ov languageOverride
		if err := toml.Unmarshal(data, &ov); err != nil {
			return nil, fmt.Errorf("parse language-spec override %s: %w", path, err)
		}
		if ov.Language == "" {
			return nil, fmt.Errorf("language-spec override %s: missing language", path)
		}
		spec := analyzer.LanguageSpec{
			Language:        types.Language(ov.Language),
			Extensions:      ov.Extensions,
			ManifestFile:    ov.ManifestFile,
			ImportsAnywhere: ov.ImportsAnywhere,
		}
		if ov.ImportPattern != "" {
			re, err := regexp.Compile(ov.ImportPattern)
			if err != nil {
				return nil, fmt.Errorf("language-spec override %s: bad import_pattern: %w", path, err)
			}
			spec.ImportPattern = re
		}
		out[spec.Language] = spec
	}
	return out, nil
}

// ApplyOverride layers an override onto base. ImportsAnywhere is always
// taken from the override; every other field is replaced only when the
// override file actually set it (non-empty/non-nil), so a project can
// override just, say, ManifestFile without having to restate Extensions.
func ApplyOverride(base analyzer.LanguageSpec, override analyzer.LanguageSpec) analyzer.LanguageSpec {
	merged := base
	if len(override.Extensions) > 0 {
		merged.Extensions = override.Extensions
	}
	if override.ImportPattern != nil {
		merged.ImportPattern = override.ImportPattern
	}
	if override.ManifestFile != "" {
		merged.ManifestFile = override.ManifestFile
	}
	merged.ImportsAnywhere = override.ImportsAnywhere
	return merged
}
