package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/glox/pkg/scanner"
)

func scanAll(source string) []scanner.Token {
	s := scanner.New(source)
	var toks []scanner.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Type == scanner.TokenEOF {
			return toks
		}
	}
}

func types(toks []scanner.Token) []scanner.TokenType {
	out := make([]scanner.TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestScansOperatorsByMaximalMunch(t *testing.T) {
	toks := scanAll("<= < == =")
	assert.Equal(t, []scanner.TokenType{
		scanner.TokenLessEqual,
		scanner.TokenLess,
		scanner.TokenEqualEqual,
		scanner.TokenEqual,
		scanner.TokenEOF,
	}, types(toks))
}

func TestKeywordsAreNotIdentifiers(t *testing.T) {
	toks := scanAll("class fun var whileNot")
	assert.Equal(t, []scanner.TokenType{
		scanner.TokenClass,
		scanner.TokenFun,
		scanner.TokenVar,
		scanner.TokenIdentifier, // "whileNot" is not the keyword "while"
		scanner.TokenEOF,
	}, types(toks))
}

func TestStringLiteralRetainsQuotes(t *testing.T) {
	toks := scanAll(`"hi"`)
	assert.Equal(t, scanner.TokenString, toks[0].Type)
	assert.Equal(t, `"hi"`, toks[0].Lexeme)
}

func TestUnterminatedStringIsAnErrorToken(t *testing.T) {
	toks := scanAll(`"unterminated`)
	assert.Equal(t, scanner.TokenError, toks[0].Type)
}

func TestLineCommentsAreSkipped(t *testing.T) {
	toks := scanAll("1 // a comment\n2")
	assert.Equal(t, []scanner.TokenType{
		scanner.TokenNumber,
		scanner.TokenNumber,
		scanner.TokenEOF,
	}, types(toks))
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}

func TestBlockCommentsDoNotNest(t *testing.T) {
	// The inner "/*" is just comment text and the first "*/" closes the
	// comment (spec §4.1: "block comments are not nested"), so "2" is
	// scanned as ordinary source. A nesting scanner would instead report
	// an unterminated comment here.
	toks := scanAll("1 /* outer /* inner */ 2")
	assert.Equal(t, []scanner.TokenType{
		scanner.TokenNumber,
		scanner.TokenNumber,
		scanner.TokenEOF,
	}, types(toks))
}

func TestUnterminatedBlockCommentIsAnErrorToken(t *testing.T) {
	toks := scanAll("1 /* never closed")
	assert.Equal(t, []scanner.TokenType{
		scanner.TokenNumber,
		scanner.TokenError,
		scanner.TokenEOF,
	}, types(toks))
}
