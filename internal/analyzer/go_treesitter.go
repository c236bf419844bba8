package analyzer

import (
	"strconv"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

// goTreeSitterExtractor extracts Go import paths via tree-sitter instead of
// regex, since import blocks can wrap across lines and a line-oriented
// regex would have to special-case the `import (` grouped form. Follows
// internal/parser/parser_language_setup.go's setupGo: same query-capture
// pattern (import_spec path), same parser/query construction, reused here
// as a single import-path capture rather than a broader symbol-extraction
// query.
type goTreeSitterExtractor struct {
	mu     sync.Mutex
	parser *tree_sitter.Parser
	query  *tree_sitter.Query
}

func newGoTreeSitterExtractor() *goTreeSitterExtractor {
	e := &goTreeSitterExtractor{}
	language := tree_sitter.NewLanguage(tree_sitter_go.Language())
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		return e // leave parser nil; Extract falls back to regex-style empty result
	}
	e.parser = parser

	// The Go tree-sitter binding has a known quirk where a successfully
	// built query can still come back with a typed-nil error, so check
	// the query pointer rather than the error (matches setupGo's
	// workaround).
	query, _ := tree_sitter.NewQuery(language, `(import_spec path: (interpreted_string_literal) @import.path)`)
	if query != nil {
		e.query = query
	}
	return e
}

func (e *goTreeSitterExtractor) Extract(path string, content []byte) ([]Import, error) {
	if e.parser == nil || e.query == nil {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tree := e.parser.Parse(content, nil)
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(e.query, tree.RootNode(), content)
	var imports []Import
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		for _, cap := range m.Captures {
			node := cap.Node
			text := node.Utf8Text(content)
			raw, err := strconv.Unquote(text)
			if err != nil {
				continue
			}
			line := int(node.StartPosition().Row) + 1
			imports = append(imports, Import{
				Raw:  raw,
				Kind: classifyGoImport(raw),
				Line: line,
			})
		}
	}
	return imports, nil
}

func classifyGoImport(raw string) ImportKind {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			return ImportThirdParty
		}
		if raw[i] == '/' {
			break
		}
	}
	return ImportStdlib
}
