package scanner_test

import (
	"testing"

	"github.com/emberlang/ember/lang/scanner"
	"github.com/emberlang/ember/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) ([]token.Token, []string) {
	t.Helper()
	var errs []string
	s := scanner.New([]byte(src), func(pos token.Pos, msg string) {
		errs = append(errs, msg)
	})
	var toks []token.Token
	var val token.Value
	for {
		tok := s.Scan(&val)
		toks = append(toks, tok)
		if tok == token.EOF {
			break
		}
	}
	return toks, errs
}

func TestScanPunctuationAndKeywords(t *testing.T) {
	toks, errs := scanAll(t, `class Foo < Bar { fun init() { this.x = 1; } }`)
	require.Empty(t, errs)
	assert.Equal(t, []token.Token{
		token.CLASS, token.IDENTIFIER, token.LESS, token.IDENTIFIER,
		token.LEFT_BRACE, token.FUN, token.IDENTIFIER, token.LEFT_PAREN,
		token.RIGHT_PAREN, token.LEFT_BRACE, token.THIS, token.DOT,
		token.IDENTIFIER, token.EQUAL, token.NUMBER, token.SEMICOLON,
		token.RIGHT_BRACE, token.RIGHT_BRACE, token.EOF,
	}, toks)
}

func TestScanTwoCharOperators(t *testing.T) {
	toks, errs := scanAll(t, `!= == <= >= = < > !`)
	require.Empty(t, errs)
	assert.Equal(t, []token.Token{
		token.BANG_EQUAL, token.EQUAL_EQUAL, token.LESS_EQUAL,
		token.GREATER_EQUAL, token.EQUAL, token.LESS, token.GREATER,
		token.BANG, token.EOF,
	}, toks)
}

func TestScanNumber(t *testing.T) {
	var val token.Value
	s := scanner.New([]byte("12.5"), nil)
	tok := s.Scan(&val)
	assert.Equal(t, token.NUMBER, tok)
	assert.Equal(t, "12.5", val.Raw)
}

func TestScanStringEscapes(t *testing.T) {
	var val token.Value
	s := scanner.New([]byte(`"a\nb\"c"`), nil)
	tok := s.Scan(&val)
	assert.Equal(t, token.STRING, tok)
	assert.Equal(t, "a\nb\"c", val.Raw)
}

func TestScanUnterminatedString(t *testing.T) {
	_, errs := scanAll(t, `"unterminated`)
	assert.NotEmpty(t, errs)
}

func TestScanLineComment(t *testing.T) {
	toks, errs := scanAll(t, "var x = 1; // trailing comment\nvar y = 2;")
	require.Empty(t, errs)
	assert.Contains(t, toks, token.VAR)
	// two statements means two VAR tokens
	count := 0
	for _, tk := range toks {
		if tk == token.VAR {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestScanSwitchKeywords(t *testing.T) {
	toks, errs := scanAll(t, `switch case default break continue`)
	require.Empty(t, errs)
	assert.Equal(t, []token.Token{
		token.SWITCH, token.SWITCH_CASE, token.SWITCH_DEFAULT,
		token.BREAK, token.CONTINUE, token.EOF,
	}, toks)
}
