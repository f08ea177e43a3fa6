package token_test

import (
	"testing"

	"github.com/emberlang/ember/lang/token"
	"github.com/stretchr/testify/assert"
)

func TestMakePos(t *testing.T) {
	p := token.MakePos(12, 5)
	l, c := p.LineCol()
	assert.Equal(t, 12, l)
	assert.Equal(t, 5, c)
	assert.False(t, p.Unknown())
	assert.Equal(t, "12:5", p.String())
}

func TestPosUnknown(t *testing.T) {
	var p token.Pos
	assert.True(t, p.Unknown())
	assert.Equal(t, "-:-", p.String())
}

func TestLookupKeyword(t *testing.T) {
	assert.Equal(t, token.CLASS, token.Lookup("class"))
	assert.Equal(t, token.IDENTIFIER, token.Lookup("classy"))
	assert.Equal(t, token.SWITCH_CASE, token.Lookup("case"))
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "+", token.PLUS.String())
	assert.Equal(t, "illegal token", token.Token(-1).String())
}
