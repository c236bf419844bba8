package analyzer

import (
	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"
)

// goFastExtractor extracts JS/TS imports using go-fAST for accurate
// CommonJS require() detection, falling back to the regex default for
// ES module import/export syntax go-fAST doesn't parse. Follows
// internal/analysis/javascript_gofast_analyzer.go, which notes the same
// limitation verbatim ("go-fAST doesn't support ES6 modules... return the
// error so hybrid analyzer can fall back to regex") and structures
// ExtractSymbols/AnalyzeDependencies the same way: try the AST parse
// first, degrade gracefully when it can't handle the syntax.
type goFastExtractor struct {
	fallback *regexExtractor
}

func newGoFastExtractor() *goFastExtractor {
	return &goFastExtractor{fallback: newRegexExtractor(LanguageSpec{
		ImportPattern: jsImportPattern,
		Classify:      classifyJS,
	})}
}

func (e *goFastExtractor) Extract(path string, content []byte) ([]Import, error) {
	regexResult, _ := e.fallback.Extract(path, content)

	program, err := parser.ParseFile(string(content))
	if err != nil {
		// ES6 module syntax or TS-only constructs; the regex pass above
		// already covers import and require lines (export-from lines are
		// not matched).
		return regexResult, nil
	}

	var requires []Import
	for _, stmt := range program.Body {
		collectRequires(stmt.Stmt, &requires)
	}
	if len(requires) == 0 {
		return regexResult, nil
	}
	return mergeImports(regexResult, requires), nil
}

// collectRequires walks statements looking for require("...") calls,
// mirroring visitStatementForCalls's traversal shape.
func collectRequires(stmt ast.Stmt, out *[]Import) {
	if stmt == nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if s.Expression != nil {
			collectRequiresExpr(s.Expression.Expr, out)
		}
	case *ast.VariableDeclaration:
		for _, decl := range s.List {
			if decl.Initializer != nil {
				collectRequiresExpr(decl.Initializer.Expr, out)
			}
		}
	case *ast.BlockStatement:
		for _, bodyStmt := range s.List {
			collectRequires(bodyStmt.Stmt, out)
		}
	case *ast.FunctionDeclaration:
		if s.Function != nil && s.Function.Body != nil {
			for _, bodyStmt := range s.Function.Body.List {
				collectRequires(bodyStmt.Stmt, out)
			}
		}
	case *ast.ReturnStatement:
		if s.Argument != nil {
			collectRequiresExpr(s.Argument.Expr, out)
		}
	}
}

func collectRequiresExpr(expr ast.Expr, out *[]Import) {
	if expr == nil {
		return
	}
	call, ok := expr.(*ast.CallExpression)
	if !ok {
		return
	}
	if ident, ok := call.Callee.Expr.(*ast.Identifier); ok && ident.Name == "require" {
		if len(call.ArgumentList) == 1 {
			if lit, ok := call.ArgumentList[0].Expr.(*ast.StringLiteral); ok {
				line := 1 // go-fast exposes byte offsets, not line numbers, at this call site
				*out = append(*out, Import{Raw: lit.Value, Kind: classifyJS(lit.Value), Line: line})
			}
		}
	}
	for _, arg := range call.ArgumentList {
		collectRequiresExpr(arg.Expr, out)
	}
}

// mergeImports unions two extraction passes by raw import string,
// preferring the regex pass's line numbers since it scans text directly.
func mergeImports(primary, extra []Import) []Import {
	seen := make(map[string]struct{}, len(primary))
	out := make([]Import, 0, len(primary)+len(extra))
	for _, imp := range primary {
		seen[imp.Raw] = struct{}{}
		out = append(out, imp)
	}
	for _, imp := range extra {
		if _, ok := seen[imp.Raw]; ok {
			continue
		}
		seen[imp.Raw] = struct{}{}
		out = append(out, imp)
	}
	return out
}
