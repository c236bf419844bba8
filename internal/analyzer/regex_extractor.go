package analyzer

import (
	"bufio"
	"bytes"
)

// regexExtractor is the default Extractor for any LanguageSpec that has no
// AST-backed Extractor plugged in. Follows internal/regex_analyzer's
// pattern: a single compiled regex per language applied line by line,
// capped to a leading byte window unless the language needs full-file
// scanning.
type regexExtractor struct {
	spec LanguageSpec
}

func newRegexExtractor(spec LanguageSpec) *regexExtractor {
	return &regexExtractor{spec: spec}
}

func (e *regexExtractor) Extract(path string, content []byte) ([]Import, error) {
	if !e.spec.ImportsAnywhere && len(content) > readWindow {
		content = content[:readWindow]
	}

	var imports []Import
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		m := e.spec.ImportPattern.FindSubmatch(text)
		if m == nil || len(m) < 2 {
			continue
		}
		raw := ""
		for _, group := range m[1:] {
			if len(group) > 0 {
				raw = string(group)
				break
			}
		}
		if raw == "" {
			continue
		}
		kind := ImportUnknown
		if e.spec.Classify != nil {
			kind = e.spec.Classify(raw)
		}
		imports = append(imports, Import{Raw: raw, Kind: kind, Line: line})
	}
	return imports, nil
}
