// Package query implements the graph query language: deps(X)/deps(X,d),
// rdeps/rdeps(X,d), allpaths, somepath, shortest, kind(t,X),
// attr(name,value,X), filter(attr,regex,X), the set operators `+ & -`,
// siblings, buildfiles, and `let` bindings, evaluated against an
// internal/graph.Graph and rendered as pretty/list/json/dot text. This
// package has no grounding precedent in the pack — no example repo ships a
// bespoke query DSL — so its lexer/parser/evaluator are hand-written
// against the stdlib only; see DESIGN.md for that justification.
package query

import "fmt"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokTargetLit
	tokString
	tokNumber
	tokLParen
	tokRParen
	tokComma
	tokPlus
	tokAmp
	tokMinus
	tokAssign
	tokSemi
	tokLet
)

type token struct {
	kind tokenKind
	text string
}

// lex tokenizes a query expression. Set-difference `-` must be followed
// by whitespace, another delimiter or the end of input; a dash inside a
// target name (`//pkg:my-target`) is never an operator, because a bare
// `//...` literal is read greedily until the next delimiter.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	n := len(src)
	isDelim := func(b byte) bool {
		switch b {
		case ' ', '\t', '\n', '\r', '(', ')', ',', '+', '&', ';':
			return true
		}
		return false
	}
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == ';':
			toks = append(toks, token{tokSemi, ";"})
			i++
		case c == '=':
			toks = append(toks, token{tokAssign, "="})
			i++
		case c == '&':
			toks = append(toks, token{tokAmp, "&"})
			i++
		case c == '+':
			toks = append(toks, token{tokPlus, "+"})
			i++
		case c == '-' && (i+1 >= n || isDelim(src[i+1]) || src[i+1] == ' '):
			toks = append(toks, token{tokMinus, "-"})
			i++
		case c == '"':
			j := i + 1
			for j < n && src[j] != '"' {
				j++
			}
			if j >= n {
				return nil, fmt.Errorf("unterminated string literal at %d", i)
			}
			toks = append(toks, token{tokString, src[i+1 : j]})
			i = j + 1
		case c == '/' && i+1 < n && src[i+1] == '/':
			j := i
			for j < n && !isDelim(src[j]) {
				j++
			}
			toks = append(toks, token{tokTargetLit, src[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < n && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			if word == "let" {
				toks = append(toks, token{tokLet, word})
			} else {
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (k tokenKind) String() string {
	names := map[tokenKind]string{
		tokEOF: "EOF", tokIdent: "ident", tokTargetLit: "target", tokString: "string",
		tokNumber: "number", tokLParen: "(", tokRParen: ")", tokComma: ",",
		tokPlus: "+", tokAmp: "&", tokMinus: "-", tokAssign: "=", tokSemi: ";", tokLet: "let",
	}
	return names[k]
}
