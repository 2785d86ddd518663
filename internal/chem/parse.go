package chem

import (
	"fmt"
	"strconv"
	"unicode"
)

// Parse reads a chemical formula such as "Fe2O3", "LiO2" or "Ca(OH)2".
// Counts may be fractional ("Li0.5CoO2"). Unknown element symbols are an
// error.
func Parse(formula string) (Composition, error) {
	p := &formulaParser{src: []rune(formula)}
	amounts, err := p.parseGroup(0)
	if err != nil {
		return Composition{}, fmt.Errorf("parse formula %q: %w", formula, err)
	}
	if p.pos != len(p.src) {
		return Composition{}, fmt.Errorf("parse formula %q: unexpected %q at %d", formula, p.src[p.pos], p.pos)
	}
	if len(amounts) == 0 {
		return Composition{}, fmt.Errorf("parse formula %q: no elements", formula)
	}
	return New(amounts), nil
}

type formulaParser struct {
	src []rune
	pos int
}

func (p *formulaParser) parseGroup(depth int) (map[string]float64, error) {
	amounts := make(map[string]float64)
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		switch {
		case r == '(':
			p.pos++
			inner, err := p.parseGroup(depth + 1)
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.src) || p.src[p.pos] != ')' {
				return nil, fmt.Errorf("unbalanced parenthesis")
			}
			p.pos++
			n, err := p.parseCount()
			if err != nil {
				return nil, err
			}
			for el, k := range inner {
				amounts[el] += k * n
			}
		case r == ')':
			if depth == 0 {
				return nil, fmt.Errorf("unbalanced parenthesis")
			}
			return amounts, nil
		case unicode.IsUpper(r):
			start := p.pos
			p.pos++
			for p.pos < len(p.src) && unicode.IsLower(p.src[p.pos]) {
				p.pos++
			}
			sym := string(p.src[start:p.pos])
			if !IsElement(sym) {
				return nil, fmt.Errorf("unknown element %q", sym)
			}
			n, err := p.parseCount()
			if err != nil {
				return nil, err
			}
			amounts[sym] += n
		case unicode.IsSpace(r):
			p.pos++
		default:
			return nil, fmt.Errorf("unexpected %q at %d", r, p.pos)
		}
	}
	return amounts, nil
}

func (p *formulaParser) parseCount() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && (unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 1, nil
	}
	n, err := strconv.ParseFloat(string(p.src[start:p.pos]), 64)
	if err != nil {
		return 0, fmt.Errorf("bad count %q", string(p.src[start:p.pos]))
	}
	return n, nil
}
