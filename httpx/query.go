package httpx

import (
	"strings"
	"unicode/utf8"

	"github.com/shapestone/shape-core/pkg/tokenizer"
)

const (
	tokenSpace = "Space"
	tokenText  = "Text"
)

// QueryBody wraps a GraphQL query and a JSON variables fragment into a
// request body:
//
//	{"query": "<query>", "variables": <variables>}
//
// Runs of spaces and newlines in query collapse to one space and a run at
// either end is dropped, so an indented multi-line query can be embedded
// as-is. Everything else, tabs included, is copied byte for byte. Empty
// variables become {}.
//
// This is templating, not JSON encoding: query must not contain quotes,
// backslashes or other characters that need escaping.
func QueryBody(query, variables string) string {
	if variables == "" {
		variables = "{}"
	}
	var b strings.Builder
	b.Grow(len(query) + len(variables) + 32)
	b.WriteString(`{"query": "`)
	b.WriteString(collapseSpace(query))
	b.WriteString(`", "variables": `)
	b.WriteString(variables)
	b.WriteString("}")
	return b.String()
}

func collapseSpace(s string) string {
	// The tokenizer reads runes; invalid UTF-8 would come back as U+FFFD.
	if !utf8.ValidString(s) {
		return collapseBytes(s)
	}
	tok := tokenizer.NewTokenizerWithoutWhitespace(spaceMatcher(), textMatcher())
	tok.Initialize(s)
	tokens, eos := tok.Tokenize()
	if !eos {
		return collapseBytes(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, t := range tokens {
		if t.Kind() == tokenSpace {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteString(t.ValueString())
	}
	return b.String()
}

// collapseBytes is collapseSpace without the tokenizer.
func collapseBytes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i := 0; i < len(s); i++ {
		if isQuerySpace(rune(s[i])) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isQuerySpace(r rune) bool {
	return r == ' ' || r == '\n'
}

// spaceMatcher matches a run of whitespace.
func spaceMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune
		for {
			r, ok := stream.PeekChar()
			if !ok || !isQuerySpace(r) {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}
		if len(value) == 0 {
			return nil
		}
		return tokenizer.NewToken(tokenSpace, value)
	}
}

// textMatcher matches everything up to the next whitespace.
func textMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune
		for {
			r, ok := stream.PeekChar()
			if !ok || isQuerySpace(r) {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}
		if len(value) == 0 {
			return nil
		}
		return tokenizer.NewToken(tokenText, value)
	}
}
