package memstore

import (
	"fmt"
	"strings"

	"github.com/theory-cloud/rowstore/pkg/attrval"
)

// parseLiteral reverses attrval.Render: it turns rendered statement
// text back into the attrval.Value it came from. Only the forms
// Render produces need to round-trip (quoted/escaped strings, bare
// numbers, true/false, NULL, [..] lists, {'k': v, ...} maps) — this is
// not a general expression parser.
func parseLiteral(s string) (attrval.Value, error) {
	p := &literalParser{s: s}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.i != len(p.s) {
		return nil, fmt.Errorf("memstore: trailing input in literal %q at offset %d", s, p.i)
	}
	return v, nil
}

type literalParser struct {
	s string
	i int
}

func (p *literalParser) skipSpace() {
	for p.i < len(p.s) && p.s[p.i] == ' ' {
		p.i++
	}
}

func (p *literalParser) parseValue() (attrval.Value, error) {
	p.skipSpace()
	if p.i >= len(p.s) {
		return nil, fmt.Errorf("memstore: unexpected end of literal %q", p.s)
	}
	switch p.s[p.i] {
	case '\'':
		return p.parseString()
	case '[':
		return p.parseList()
	case '{':
		return p.parseMap()
	default:
		return p.parseWord()
	}
}

func (p *literalParser) parseString() (attrval.Value, error) {
	p.i++ // opening quote
	var b strings.Builder
	for p.i < len(p.s) {
		c := p.s[p.i]
		if c == '\'' {
			if p.i+1 < len(p.s) && p.s[p.i+1] == '\'' {
				b.WriteByte('\'')
				p.i += 2
				continue
			}
			p.i++
			return attrval.String(b.String()), nil
		}
		b.WriteByte(c)
		p.i++
	}
	return nil, fmt.Errorf("memstore: unterminated string literal in %q", p.s)
}

func (p *literalParser) parseWord() (attrval.Value, error) {
	start := p.i
	for p.i < len(p.s) && !strings.ContainsRune(" ,]}", rune(p.s[p.i])) {
		p.i++
	}
	word := p.s[start:p.i]
	if word == "" {
		return nil, fmt.Errorf("memstore: empty literal token in %q at offset %d", p.s, start)
	}
	switch word {
	case "true":
		return attrval.Bool(true), nil
	case "false":
		return attrval.Bool(false), nil
	case "NULL":
		return attrval.Null(), nil
	default:
		return attrval.Number(word), nil
	}
}

func (p *literalParser) parseList() (attrval.Value, error) {
	p.i++ // '['
	var items []attrval.Value
	p.skipSpace()
	if p.i < len(p.s) && p.s[p.i] == ']' {
		p.i++
		return attrval.List(items...), nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.i >= len(p.s) {
			return nil, fmt.Errorf("memstore: unterminated list literal in %q", p.s)
		}
		switch p.s[p.i] {
		case ',':
			p.i++
		case ']':
			p.i++
			return attrval.List(items...), nil
		default:
			return nil, fmt.Errorf("memstore: malformed list literal %q at offset %d", p.s, p.i)
		}
	}
}

func (p *literalParser) parseMap() (attrval.Value, error) {
	p.i++ // '{'
	m := attrval.Map{}
	p.skipSpace()
	if p.i < len(p.s) && p.s[p.i] == '}' {
		p.i++
		return attrval.MapOf(m), nil
	}
	for {
		p.skipSpace()
		keyVal, err := p.parseString()
		if err != nil {
			return nil, err
		}
		key, _ := attrval.StringValue(keyVal)
		p.skipSpace()
		if p.i >= len(p.s) || p.s[p.i] != ':' {
			return nil, fmt.Errorf("memstore: expected ':' in map literal %q at offset %d", p.s, p.i)
		}
		p.i++
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		m[key] = v
		p.skipSpace()
		if p.i >= len(p.s) {
			return nil, fmt.Errorf("memstore: unterminated map literal in %q", p.s)
		}
		switch p.s[p.i] {
		case ',':
			p.i++
		case '}':
			p.i++
			return attrval.MapOf(m), nil
		default:
			return nil, fmt.Errorf("memstore: malformed map literal %q at offset %d", p.s, p.i)
		}
	}
}
