package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSubtree parses one node description in the textual subtree format.
// Trailing content after the closing brace is rejected.
func ParseSubtree(s string) (*SubtreeNode, error) {
	toks, err := scanSubtree(s)
	if err != nil {
		return nil, err
	}
	p := &subtreeParser{toks: toks}
	p.skipSeps()
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	p.skipSeps()
	if !p.eof() {
		return nil, fmt.Errorf("%w: trailing content at line %d", ErrSubtreeSyntax, p.peek().line)
	}
	return node, nil
}

type tokKind int

const (
	tokWord tokKind = iota + 1
	tokString
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokSep
)

type token struct {
	kind tokKind
	text string
	line int
}

func scanSubtree(s string) ([]token, error) {
	var toks []token
	line := 1
	emitSep := func() {
		if len(toks) > 0 && toks[len(toks)-1].kind != tokSep {
			toks = append(toks, token{kind: tokSep, line: line})
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\n':
			line++
			emitSep()
			i++
		case c == ',':
			emitSep()
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '{':
			toks = append(toks, token{kind: tokLBrace, line: line})
			i++
		case c == '}':
			toks = append(toks, token{kind: tokRBrace, line: line})
			i++
		case c == '[':
			toks = append(toks, token{kind: tokLBracket, line: line})
			i++
		case c == ']':
			toks = append(toks, token{kind: tokRBracket, line: line})
			i++
		case c == '"':
			j := i + 1
			var b strings.Builder
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' && j+1 < len(s) {
					j++
				}
				if s[j] == '\n' {
					line++
				}
				b.WriteByte(s[j])
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("%w: unterminated string at line %d", ErrSubtreeSyntax, line)
			}
			toks = append(toks, token{kind: tokString, text: b.String(), line: line})
			i = j + 1
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: s[i:j], line: line})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at line %d", ErrSubtreeSyntax, c, line)
		}
	}
	return toks, nil
}

func isWordByte(c byte) bool {
	return c == '_' || c == '-' || c == '+' || c == '.' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNumberWord(w string) bool {
	if w == "" {
		return false
	}
	_, err := strconv.ParseFloat(w, 64)
	return err == nil
}

type subtreeParser struct {
	toks []token
	pos  int
}

func (p *subtreeParser) eof() bool { return p.pos >= len(p.toks) }

func (p *subtreeParser) peek() token {
	if p.eof() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *subtreeParser) next() (token, error) {
	if p.eof() {
		return token{}, fmt.Errorf("%w: unexpected end of input", ErrSubtreeSyntax)
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *subtreeParser) skipSeps() {
	for !p.eof() && p.toks[p.pos].kind == tokSep {
		p.pos++
	}
}

func (p *subtreeParser) expect(kind tokKind, what string) (token, error) {
	p.skipSeps()
	t, err := p.next()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind {
		return token{}, fmt.Errorf("%w: expected %s at line %d", ErrSubtreeSyntax, what, t.line)
	}
	return t, nil
}

func (p *subtreeParser) parseNode() (*SubtreeNode, error) {
	t, err := p.expect(tokWord, "node type")
	if err != nil {
		return nil, err
	}
	node := &SubtreeNode{}
	if t.text == "DEF" {
		def, err := p.expect(tokWord, "DEF name")
		if err != nil {
			return nil, err
		}
		node.DefName = def.text
		t, err = p.expect(tokWord, "node type")
		if err != nil {
			return nil, err
		}
	}
	if isNumberWord(t.text) {
		return nil, fmt.Errorf("%w: %q is not a node type (line %d)", ErrSubtreeSyntax, t.text, t.line)
	}
	node.Type = t.text

	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	for {
		p.skipSeps()
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			return node, nil
		}
		if t.kind != tokWord || isNumberWord(t.text) {
			return nil, fmt.Errorf("%w: expected field name at line %d", ErrSubtreeSyntax, t.line)
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		node.Fields = append(node.Fields, SubtreeField{Name: t.text, Value: value})
	}
}

func (p *subtreeParser) parseValue() (SubtreeValue, error) {
	p.skipSeps()
	t, err := p.next()
	if err != nil {
		return SubtreeValue{}, err
	}
	switch t.kind {
	case tokString:
		return SubtreeValue{Kind: SVString, Str: t.text}, nil
	case tokLBracket:
		return p.parseList()
	case tokWord:
		switch {
		case t.text == "TRUE":
			return SubtreeValue{Kind: SVBool, Bool: true}, nil
		case t.text == "FALSE":
			return SubtreeValue{Kind: SVBool, Bool: false}, nil
		case isNumberWord(t.text):
			return p.parseNumbers(t)
		default:
			p.pos-- // the word opens a nested node
			node, err := p.parseNode()
			if err != nil {
				return SubtreeValue{}, err
			}
			return SubtreeValue{Kind: SVNode, Node: node}, nil
		}
	default:
		return SubtreeValue{}, fmt.Errorf("%w: unexpected token at line %d", ErrSubtreeSyntax, t.line)
	}
}

// parseNumbers collects a contiguous run of numbers. Runs end at commas,
// line breaks, or any non-number token, so bracketed vector lists keep
// their per-line grouping.
func (p *subtreeParser) parseNumbers(first token) (SubtreeValue, error) {
	f, err := strconv.ParseFloat(first.text, 64)
	if err != nil {
		return SubtreeValue{}, fmt.Errorf("%w: bad number %q at line %d", ErrSubtreeSyntax, first.text, first.line)
	}
	numbers := []float64{f}
	for !p.eof() {
		t := p.peek()
		if t.kind != tokWord || !isNumberWord(t.text) {
			break
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return SubtreeValue{}, fmt.Errorf("%w: bad number %q at line %d", ErrSubtreeSyntax, t.text, t.line)
		}
		numbers = append(numbers, f)
		p.pos++
	}
	if len(numbers) == 1 {
		return SubtreeValue{Kind: SVNumber, Number: numbers[0]}, nil
	}
	return SubtreeValue{Kind: SVNumbers, Numbers: numbers}, nil
}

func (p *subtreeParser) parseList() (SubtreeValue, error) {
	out := SubtreeValue{Kind: SVList, List: []SubtreeValue{}}
	for {
		p.skipSeps()
		if p.eof() {
			return SubtreeValue{}, fmt.Errorf("%w: unterminated list", ErrSubtreeSyntax)
		}
		if p.peek().kind == tokRBracket {
			p.pos++
			return out, nil
		}
		item, err := p.parseValue()
		if err != nil {
			return SubtreeValue{}, err
		}
		out.List = append(out.List, item)
	}
}
