package compiler

import "github.com/emberlang/ember/lang/token"

// rules is the Pratt parse-rule table: for each token kind, how to parse it
// as the start of an expression (prefix), how to parse it as a continuation
// of one (infix), and at what precedence the infix form binds.
var rules = func() [token.Count]parseRule {
	var r [token.Count]parseRule
	r[token.LEFT_PAREN] = parseRule{parseGrouping, parseCall, PrecCall}
	r[token.LEFT_BRACKET] = parseRule{parseArrayLiteral, parseSubscript, PrecCall}
	r[token.DOT] = parseRule{nil, parseDot, PrecCall}
	r[token.MINUS] = parseRule{parseUnary, parseBinary, PrecTerm}
	r[token.PLUS] = parseRule{nil, parseBinary, PrecTerm}
	r[token.SLASH] = parseRule{nil, parseBinary, PrecFactor}
	r[token.STAR] = parseRule{nil, parseBinary, PrecFactor}
	r[token.MODULO] = parseRule{nil, parseBinary, PrecFactor}
	r[token.BANG] = parseRule{parseUnary, nil, PrecNone}
	r[token.BANG_EQUAL] = parseRule{nil, parseBinary, PrecEquality}
	r[token.EQUAL_EQUAL] = parseRule{nil, parseBinary, PrecEquality}
	r[token.GREATER] = parseRule{nil, parseBinary, PrecComparison}
	r[token.GREATER_EQUAL] = parseRule{nil, parseBinary, PrecComparison}
	r[token.LESS] = parseRule{nil, parseBinary, PrecComparison}
	r[token.LESS_EQUAL] = parseRule{nil, parseBinary, PrecComparison}
	r[token.QUESTION] = parseRule{nil, parseConditional, PrecConditional}
	r[token.IDENTIFIER] = parseRule{parseVariableExpr, nil, PrecNone}
	r[token.STRING] = parseRule{parseString, nil, PrecNone}
	r[token.NUMBER] = parseRule{parseNumber, nil, PrecNone}
	r[token.AND] = parseRule{nil, parseAnd, PrecAnd}
	r[token.OR] = parseRule{nil, parseOr, PrecOr}
	r[token.FALSE] = parseRule{parseLiteral, nil, PrecNone}
	r[token.TRUE] = parseRule{parseLiteral, nil, PrecNone}
	r[token.NIL] = parseRule{parseLiteral, nil, PrecNone}
	r[token.THIS] = parseRule{parseThis, nil, PrecNone}
	r[token.SUPER] = parseRule{parseSuper, nil, PrecNone}
	return r
}()
