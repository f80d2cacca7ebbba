// File: internal/page/css.go
package page

import (
	"fmt"
	"strings"
)

// Property represents a CSS property name (e.g. "display").
type Property string

// Value represents a raw CSS value (e.g. "none").
type Value string

// Declaration is a property-value pair.
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// Rule is a set of declarations applied by one or more selectors.
type Rule struct {
	Selectors    []Selector
	Declarations []Declaration
}

// StyleSheet is a parsed CSS document.
type StyleSheet struct {
	Rules []Rule
}

// Selector is a complex selector: compound selectors joined by combinators.
type Selector struct {
	Compounds []CompoundSelector
}

// CompoundSelector pairs a simple selector with the combinator that links it
// to the compound on its left.
type CompoundSelector struct {
	Combinator Combinator
	Simple     SimpleSelector
}

// SimpleSelector holds the components of one compound selector.
type SimpleSelector struct {
	Tag        string
	ID         string
	Classes    []string
	Attributes []AttributeSelector
}

// AttributeSelector is `[name]` or `[name<op>value]`.
type AttributeSelector struct {
	Name     string
	Operator string // "", "=", "~=", "|=", "^=", "$=", "*="
	Value    string
}

// Combinator defines the relationship between compound selectors.
type Combinator int

const (
	CombinatorNone Combinator = iota
	CombinatorDescendant
	CombinatorChild
	CombinatorAdjacentSibling
	CombinatorGeneralSibling
)

// Specificity returns the (id, class, type) counts for cascade ordering.
func (s Selector) Specificity() (a, b, c int) {
	for _, cp := range s.Compounds {
		sa, sb, sc := cp.Simple.specificity()
		a += sa
		b += sb
		c += sc
	}
	return a, b, c
}

func (s SimpleSelector) specificity() (a, b, c int) {
	if s.ID != "" {
		a = 1
	}
	b = len(s.Classes) + len(s.Attributes)
	if s.Tag != "" && s.Tag != "*" {
		c = 1
	}
	return a, b, c
}

func (s SimpleSelector) valid() bool {
	return s.Tag != "" || s.ID != "" || len(s.Classes) > 0 || len(s.Attributes) > 0
}

// ParseSelector parses a single complex selector. Selector syntax the pattern
// database does not need (pseudo-classes, :not, namespaces) is rejected by
// skipping the offending compound, so a malformed database entry degrades to
// a non-matching selector instead of an error mid-cascade.
func ParseSelector(input string) (Selector, error) {
	p := &cssParser{input: input}
	sel := p.parseComplexSelector()
	if len(sel.Compounds) == 0 {
		return Selector{}, fmt.Errorf("empty or unparsable selector: %q", input)
	}
	return sel, nil
}

// ParseSelectorList parses a comma-separated selector list, dropping entries
// that fail to parse.
func ParseSelectorList(input string) []Selector {
	var out []Selector
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if sel, err := ParseSelector(part); err == nil {
			out = append(out, sel)
		}
	}
	return out
}

// ParseStyleSheet parses a CSS document. Unknown constructs are skipped, never
// fatal: page CSS is attacker-controlled input.
func ParseStyleSheet(input string) StyleSheet {
	p := &cssParser{input: input}
	var rules []Rule
	for {
		p.skipWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.peek() == '@' {
			p.skipAtRule()
			continue
		}

		selectors := p.parseSelectorGroup()
		if len(selectors) == 0 {
			p.skipTo('{')
			if !p.eof() && p.peek() == '{' {
				p.skipBlock('{', '}')
			}
			continue
		}
		decls := p.parseDeclarationBlock()
		if len(decls) > 0 {
			rules = append(rules, Rule{Selectors: selectors, Declarations: decls})
		}
	}
	return StyleSheet{Rules: rules}
}

// parseInlineStyle parses the contents of a style="" attribute.
func parseInlineStyle(attr string) []Declaration {
	var decls []Declaration
	for _, part := range strings.Split(attr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		important := false
		if strings.HasSuffix(strings.ToLower(val), "!important") {
			important = true
			val = strings.TrimSpace(val[:len(val)-len("!important")])
		}
		if prop != "" && val != "" {
			decls = append(decls, Declaration{Property: Property(prop), Value: Value(val), Important: important})
		}
	}
	return decls
}

// -- parser internals --

type cssParser struct {
	input string
	pos   int
}

func (p *cssParser) parseSelectorGroup() []Selector {
	var group []Selector
	for {
		p.skipWhitespace()
		if p.eof() || p.peek() == '{' {
			break
		}
		sel := p.parseComplexSelector()
		if len(sel.Compounds) > 0 {
			group = append(group, sel)
		}
		p.skipWhitespace()
		if p.eof() || p.peek() == '{' {
			break
		}
		if p.peek() == ',' {
			p.next()
			continue
		}
		break
	}
	return group
}

func (p *cssParser) parseComplexSelector() Selector {
	var sel Selector
	combinator := CombinatorNone

	for {
		p.skipWhitespace()
		if p.eof() || p.peek() == '{' || p.peek() == ',' {
			break
		}

		simple, ok := p.parseSimpleSelector()
		if !ok {
			p.skipTo(' ', '>', '+', '~', ',', '{')
			continue
		}
		if simple.valid() || simple.Tag == "*" {
			sel.Compounds = append(sel.Compounds, CompoundSelector{
				Combinator: combinator,
				Simple:     simple,
			})
		}

		p.skipWhitespace()
		if p.eof() || p.peek() == '{' || p.peek() == ',' {
			break
		}
		switch p.peek() {
		case '>':
			combinator = CombinatorChild
			p.next()
		case '+':
			combinator = CombinatorAdjacentSibling
			p.next()
		case '~':
			combinator = CombinatorGeneralSibling
			p.next()
		default:
			combinator = CombinatorDescendant
		}
	}
	return sel
}

func (p *cssParser) parseSimpleSelector() (SimpleSelector, bool) {
	sel := SimpleSelector{}

	if !p.eof() {
		ch := p.peek()
		if ch == '*' {
			p.next()
			sel.Tag = "*"
		} else if isIdentStart(ch) {
			sel.Tag = strings.ToLower(p.parseIdent())
		}
	}

	for !p.eof() {
		switch p.peek() {
		case '#':
			p.next()
			sel.ID = p.parseIdent()
		case '.':
			p.next()
			sel.Classes = append(sel.Classes, p.parseIdent())
		case '[':
			p.next()
			if attr, ok := p.parseAttributeSelector(); ok {
				sel.Attributes = append(sel.Attributes, attr)
			}
		default:
			if sel.valid() || sel.Tag == "*" {
				return sel, true
			}
			return sel, false
		}
	}
	return sel, sel.valid() || sel.Tag == "*"
}

func (p *cssParser) parseAttributeSelector() (AttributeSelector, bool) {
	p.skipWhitespace()
	name := p.parseIdent()
	p.skipWhitespace()
	if p.eof() {
		return AttributeSelector{}, false
	}

	if p.peek() == ']' {
		p.next()
		return AttributeSelector{Name: name}, name != ""
	}

	var op strings.Builder
	op.WriteByte(p.next())
	if !p.eof() && p.peek() == '=' {
		op.WriteByte(p.next())
	}
	p.skipWhitespace()

	var value string
	if !p.eof() && (p.peek() == '"' || p.peek() == '\'') {
		quote := p.next()
		start := p.pos
		for !p.eof() && p.peek() != quote {
			p.pos++
		}
		value = p.input[start:p.pos]
		if !p.eof() {
			p.next()
		}
	} else {
		value = p.parseIdent()
	}
	p.skipWhitespace()

	if p.eof() || p.peek() != ']' {
		return AttributeSelector{}, false
	}
	p.next()
	return AttributeSelector{Name: name, Operator: op.String(), Value: value}, name != ""
}

func (p *cssParser) parseDeclarationBlock() []Declaration {
	p.skipWhitespace()
	if p.eof() || p.peek() != '{' {
		return nil
	}
	p.next()

	var decls []Declaration
	for {
		p.skipWhitespace()
		if p.eof() || p.peek() == '}' {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		prop, val, important := p.parseDeclaration()
		if prop != "" && val != "" {
			decls = append(decls, Declaration{
				Property:  Property(strings.ToLower(prop)),
				Value:     Value(val),
				Important: important,
			})
		}
	}
	if !p.eof() && p.peek() == '}' {
		p.next()
	}
	return decls
}

func (p *cssParser) parseDeclaration() (prop, val string, important bool) {
	if !isIdentStart(p.peek()) {
		p.skipTo(';', '}')
		if !p.eof() && p.peek() == ';' {
			p.next()
		}
		return
	}
	prop = p.parseIdent()
	p.skipWhitespace()
	if p.eof() || p.peek() != ':' {
		p.skipTo(';', '}')
		if !p.eof() && p.peek() == ';' {
			p.next()
		}
		return "", "", false
	}
	p.next()
	p.skipWhitespace()

	start := p.pos
	for !p.eof() {
		ch := p.peek()
		if ch == ';' || ch == '}' {
			break
		}
		if ch == '"' || ch == '\'' {
			p.skipQuoted(ch)
			continue
		}
		if ch == '(' {
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	val = strings.TrimSpace(p.input[start:p.pos])

	if strings.HasSuffix(strings.ToLower(val), "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}
	p.skipWhitespace()
	if !p.eof() && p.peek() == ';' {
		p.next()
	}
	return prop, val, important
}

func (p *cssParser) eof() bool { return p.pos >= len(p.input) }

func (p *cssParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *cssParser) next() byte {
	ch := p.peek()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *cssParser) skipWhitespace() {
	for !p.eof() && isCSSSpace(p.peek()) {
		p.pos++
	}
}

func (p *cssParser) startsWith(s string) bool {
	return p.pos+len(s) <= len(p.input) && p.input[p.pos:p.pos+len(s)] == s
}

func (p *cssParser) skipComment() {
	p.pos += 2
	if end := strings.Index(p.input[p.pos:], "*/"); end == -1 {
		p.pos = len(p.input)
	} else {
		p.pos += end + 2
	}
}

func (p *cssParser) skipTo(targets ...byte) {
	for !p.eof() {
		ch := p.peek()
		for _, t := range targets {
			if ch == t {
				return
			}
		}
		p.pos++
	}
}

func (p *cssParser) skipBlock(open, close byte) {
	depth := 0
	for !p.eof() {
		ch := p.next()
		if ch == open {
			depth++
		} else if ch == close {
			depth--
			if depth <= 0 {
				return
			}
		}
	}
}

func (p *cssParser) skipQuoted(quote byte) {
	p.next()
	for !p.eof() {
		ch := p.next()
		if ch == '\\' {
			p.next()
		} else if ch == quote {
			return
		}
	}
}

func (p *cssParser) skipAtRule() {
	p.next() // '@'
	_ = p.parseIdent()
	for !p.eof() {
		ch := p.peek()
		if ch == '{' {
			p.skipBlock('{', '}')
			return
		}
		if ch == ';' {
			p.next()
			return
		}
		p.pos++
	}
}

func (p *cssParser) parseIdent() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.peek()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isCSSSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
