package wire

import (
	"fmt"
	"strings"
)

// parseDumpedMap reads the legacy serialized parameter map. The payload has
// the shape
//
//	$VAR1 = { 'key' => 'value', 'n' => 42 };
//
// with single-quoted strings (backslash escapes for \' and \\) or bare
// numeric scalars. Only a flat map is accepted; nested structures fail.
func parseDumpedMap(src string) (map[string]any, error) {
	p := &dumpParser{src: src}
	p.skipSpace()
	if strings.HasPrefix(p.rest(), "$") {
		// "$VAR1 =" prefix
		for p.pos < len(p.src) && p.src[p.pos] != '=' {
			p.pos++
		}
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("bad serialized map: missing assignment")
		}
		p.pos++
	}
	p.skipSpace()
	if !p.consume('{') {
		return nil, fmt.Errorf("bad serialized map: expected '{'")
	}
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.consume('}') {
			break
		}
		key, err := p.scalar()
		if err != nil {
			return nil, fmt.Errorf("bad serialized map key: %w", err)
		}
		p.skipSpace()
		if !p.consumeStr("=>") {
			return nil, fmt.Errorf("bad serialized map: expected '=>' after key %v", key)
		}
		p.skipSpace()
		val, err := p.scalar()
		if err != nil {
			return nil, fmt.Errorf("bad serialized map value for %v: %w", key, err)
		}
		out[fmt.Sprintf("%v", key)] = val
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			break
		}
		return nil, fmt.Errorf("bad serialized map: expected ',' or '}'")
	}
	return out, nil
}

type dumpParser struct {
	src string
	pos int
}

func (p *dumpParser) rest() string { return p.src[p.pos:] }

func (p *dumpParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *dumpParser) consume(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *dumpParser) consumeStr(s string) bool {
	if strings.HasPrefix(p.rest(), s) {
		p.pos += len(s)
		return true
	}
	return false
}

// scalar reads a single-quoted string or a bare token (number, undef).
func (p *dumpParser) scalar() (any, error) {
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	if c := p.src[p.pos]; c == '{' || c == '[' {
		return nil, fmt.Errorf("nested structures are not supported")
	}
	if p.src[p.pos] == '\'' {
		p.pos++
		var b strings.Builder
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			if c == '\\' && p.pos+1 < len(p.src) {
				b.WriteByte(p.src[p.pos+1])
				p.pos += 2
				continue
			}
			if c == '\'' {
				p.pos++
				return b.String(), nil
			}
			b.WriteByte(c)
			p.pos++
		}
		return nil, fmt.Errorf("unterminated string")
	}
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == '}' || c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			break
		}
		p.pos++
	}
	tok := p.src[start:p.pos]
	if tok == "" {
		return nil, fmt.Errorf("empty token")
	}
	if tok == "undef" {
		return nil, nil
	}
	return tok, nil
}
