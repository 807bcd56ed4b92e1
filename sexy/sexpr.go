package sexy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NodeType represents the type of a Node
type NodeType int

const (
	NodeSymbol NodeType = iota
	NodeString
	NodeInteger
	NodeReal
	NodeList
	NodeMap
	NodeArray
)

// ErrIncomplete is returned by Parse when the input ends inside an open list,
// map, array or string. Callers reading interactively can ask for more input.
var ErrIncomplete = errors.New("unexpected end of input")

// Node represents any Sexy data structure
type Node struct {
	Type NodeType

	// Atoms and text
	Text string // NodeSymbol, NodeString, NodeInteger, NodeReal

	// Collections
	Items []*Node  // NodeList, NodeMap, NodeArray
	Keys  []string // NodeMap - parallel to Items

	// Metadata for NodeList - stored as parallel slices like maps
	MetaKeys  []string
	MetaItems []*Node

	// Where the datum starts in the input, 1-based.
	Line   int
	Column int
}

func (n *Node) String() string {
	switch n.Type {
	case NodeSymbol, NodeInteger, NodeReal:
		return n.Text
	case NodeString:
		return strconv.Quote(n.Text)
	case NodeList:
		var parts []string
		if len(n.MetaKeys) > 0 {
			metaParts := make([]string, len(n.MetaKeys))
			for i, key := range n.MetaKeys {
				metaParts[i] = fmt.Sprintf("%s: %s", key, n.MetaItems[i].String())
			}
			parts = append(parts, fmt.Sprintf("^{%s}", strings.Join(metaParts, ", ")))
		}
		for _, item := range n.Items {
			parts = append(parts, item.String())
		}
		return fmt.Sprintf("(%s)", strings.Join(parts, " "))
	case NodeMap:
		parts := make([]string, len(n.Keys))
		for i, key := range n.Keys {
			parts[i] = fmt.Sprintf("%s: %s", key, n.Items[i].String())
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	case NodeArray:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			parts[i] = item.String()
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, " "))
	default:
		return fmt.Sprintf("UNKNOWN_NODE_TYPE_%d", n.Type)
	}
}

// Meta returns the metadata value stored under key, or nil.
func (n *Node) Meta(key string) *Node {
	for i, k := range n.MetaKeys {
		if k == key {
			return n.MetaItems[i]
		}
	}
	return nil
}

// IsSymbol reports whether n is the symbol name.
func (n *Node) IsSymbol(name string) bool {
	return n.Type == NodeSymbol && n.Text == name
}

func NewSymbol(name string) *Node {
	return &Node{Type: NodeSymbol, Text: name}
}

func NewString(value string) *Node {
	return &Node{Type: NodeString, Text: value}
}

func NewInteger(text string) *Node {
	return &Node{Type: NodeInteger, Text: text}
}

func NewReal(text string) *Node {
	return &Node{Type: NodeReal, Text: text}
}

func NewList(items []*Node) *Node {
	return &Node{Type: NodeList, Items: items}
}

type parser struct {
	lexer        *lexer
	currentToken token
	peekToken    token
}

// Parse parses the entire input and returns the top-level datum
func Parse(input string) (*Node, error) {
	p := &parser{lexer: newLexer(input)}
	p.nextToken()
	p.nextToken()

	result, err := p.parseDatum()
	if p.lexer.err != nil {
		// Lexer errors take priority because they might cause confusing parser errors.
		return nil, p.lexer.err
	}
	if err != nil {
		return nil, err
	}

	if p.currentToken.Type != tokenEOF {
		return nil, p.errorf("expected EOF but got %s", p.currentToken.Type)
	}

	return result, nil
}

func (p *parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.lexer.nextToken()
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%d:%d: %s", p.currentToken.Line, p.currentToken.Column, fmt.Sprintf(format, args...))
}

// unexpected reports the current token as out of place, or ErrIncomplete if
// the input ran out.
func (p *parser) unexpected(what string) error {
	if p.currentToken.Type == tokenEOF {
		return ErrIncomplete
	}
	return p.errorf("expected %s but got %s", what, p.currentToken.Type)
}

func (p *parser) parseDatum() (*Node, error) {
	tok := p.currentToken
	var node *Node
	switch tok.Type {
	case tokenSymbol:
		node = NewSymbol(tok.Value)
		p.nextToken()
	case tokenString:
		node = NewString(tok.Value)
		p.nextToken()
	case tokenInteger:
		node = NewInteger(tok.Value)
		p.nextToken()
	case tokenReal:
		node = NewReal(tok.Value)
		p.nextToken()
	case tokenLParen:
		var err error
		if node, err = p.parseList(); err != nil {
			return nil, err
		}
	case tokenLBrace:
		var err error
		if node, err = p.parseMap(); err != nil {
			return nil, err
		}
	case tokenLBracket:
		var err error
		if node, err = p.parseArray(); err != nil {
			return nil, err
		}
	default:
		return nil, p.unexpected("datum")
	}
	node.Line = tok.Line
	node.Column = tok.Column
	return node, nil
}

func (p *parser) parseList() (*Node, error) {
	node := &Node{Type: NodeList}
	p.nextToken() // consume '('

	for p.currentToken.Type != tokenRParen && p.currentToken.Type != tokenEOF {
		if p.currentToken.Type != tokenCaret {
			item, err := p.parseDatum()
			if err != nil {
				return nil, err
			}
			node.Items = append(node.Items, item)
			continue
		}

		p.nextToken() // consume '^'
		if p.currentToken.Type != tokenLBrace {
			return nil, p.unexpected("'{' after '^'")
		}
		meta, err := p.parseMap()
		if err != nil {
			return nil, err
		}
		for i, key := range meta.Keys {
			// Later values win.
			found := false
			for j, existing := range node.MetaKeys {
				if existing == key {
					node.MetaItems[j] = meta.Items[i]
					found = true
					break
				}
			}
			if !found {
				node.MetaKeys = append(node.MetaKeys, key)
				node.MetaItems = append(node.MetaItems, meta.Items[i])
			}
		}
	}

	if p.currentToken.Type != tokenRParen {
		return nil, p.unexpected("')'")
	}
	p.nextToken() // consume ')'
	return node, nil
}

func (p *parser) parseMap() (*Node, error) {
	node := &Node{Type: NodeMap}
	p.nextToken() // consume '{'

	for p.currentToken.Type != tokenRBrace && p.currentToken.Type != tokenEOF {
		if p.currentToken.Type != tokenSymbol {
			return nil, p.unexpected("symbol for map key")
		}
		node.Keys = append(node.Keys, p.currentToken.Value)
		p.nextToken()

		if p.currentToken.Type != tokenColon {
			return nil, p.unexpected("':' after map key")
		}
		p.nextToken()

		value, err := p.parseDatum()
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, value)

		if p.currentToken.Type == tokenComma {
			p.nextToken()
		} else if p.currentToken.Type != tokenRBrace {
			return nil, p.unexpected("',' or '}' in map")
		}
	}

	if p.currentToken.Type != tokenRBrace {
		return nil, p.unexpected("'}'")
	}
	p.nextToken() // consume '}'
	return node, nil
}

func (p *parser) parseArray() (*Node, error) {
	node := &Node{Type: NodeArray}
	p.nextToken() // consume '['

	for p.currentToken.Type != tokenRBracket && p.currentToken.Type != tokenEOF {
		item, err := p.parseDatum()
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, item)
	}

	if p.currentToken.Type != tokenRBracket {
		return nil, p.unexpected("']'")
	}
	p.nextToken() // consume ']'
	return node, nil
}

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenSymbol
	tokenString
	tokenInteger
	tokenReal
	tokenLParen
	tokenRParen
	tokenLBrace
	tokenRBrace
	tokenLBracket
	tokenRBracket
	tokenColon
	tokenComma
	tokenCaret
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "EOF"
	case tokenSymbol:
		return "symbol"
	case tokenString:
		return "string"
	case tokenInteger:
		return "integer"
	case tokenReal:
		return "real"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenLBrace:
		return "'{'"
	case tokenRBrace:
		return "'}'"
	case tokenLBracket:
		return "'['"
	case tokenRBracket:
		return "']'"
	case tokenColon:
		return "':'"
	case tokenComma:
		return "','"
	case tokenCaret:
		return "'^'"
	default:
		return fmt.Sprintf("unknown token %d", int(t))
	}
}

type token struct {
	Type   tokenType
	Value  string
	Line   int
	Column int
}

type lexer struct {
	input    []rune
	position int
	current  rune
	line     int
	column   int
	err      error
}

func newLexer(input string) *lexer {
	l := &lexer{input: []rune(input), line: 1}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.current == '\n' {
		l.line++
		l.column = 0
	}
	if l.position >= len(l.input) {
		l.current = 0
	} else {
		l.current = l.input[l.position]
	}
	l.position++
	l.column++
}

func (l *lexer) peekChar() rune {
	if l.position >= len(l.input) {
		return 0
	}
	return l.input[l.position]
}

func (l *lexer) fail(err error) token {
	if l.err == nil {
		l.err = err
	}
	return token{Type: tokenEOF, Line: l.line, Column: l.column}
}

func (l *lexer) readWhile(pred func(rune) bool) string {
	start := l.position - 1
	for l.current != 0 && pred(l.current) {
		l.readChar()
	}
	return string(l.input[start : l.position-1])
}

func (l *lexer) readString() (string, error) {
	var sb strings.Builder
	l.readChar() // skip opening quote

	for l.current != '"' && l.current != 0 {
		if l.current == '\\' {
			l.readChar()
			switch l.current {
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 0:
				return "", ErrIncomplete
			default:
				return "", fmt.Errorf("%d:%d: invalid escape sequence: \\%c", l.line, l.column, l.current)
			}
		} else {
			sb.WriteRune(l.current)
		}
		l.readChar()
	}

	if l.current != '"' {
		return "", ErrIncomplete
	}
	l.readChar() // skip closing quote
	return sb.String(), nil
}

// readNumber reads an optionally signed integer or decimal real.
func (l *lexer) readNumber() token {
	start := l.position - 1
	if l.current == '+' || l.current == '-' {
		l.readChar()
	}
	l.readWhile(unicode.IsDigit)
	kind := tokenInteger
	if l.current == '.' && unicode.IsDigit(l.peekChar()) {
		kind = tokenReal
		l.readChar()
		l.readWhile(unicode.IsDigit)
	}
	return token{Type: kind, Value: string(l.input[start : l.position-1])}
}

func (l *lexer) nextToken() token {
	for {
		for unicode.IsSpace(l.current) {
			l.readChar()
		}
		if l.current == ';' {
			l.readWhile(func(r rune) bool { return r != '\n' && r != '\r' })
			continue
		}

		line, column := l.line, l.column
		tok := l.scan()
		tok.Line, tok.Column = line, column
		return tok
	}
}

func (l *lexer) scan() token {
	punct := map[rune]tokenType{
		'(': tokenLParen, ')': tokenRParen,
		'{': tokenLBrace, '}': tokenRBrace,
		'[': tokenLBracket, ']': tokenRBracket,
		':': tokenColon, ',': tokenComma, '^': tokenCaret,
	}

	switch c := l.current; {
	case c == 0:
		return token{Type: tokenEOF}
	case punct[c] != tokenEOF:
		l.readChar()
		return token{Type: punct[c], Value: string(c)}
	case c == '"':
		str, err := l.readString()
		if err != nil {
			return l.fail(err)
		}
		return token{Type: tokenString, Value: str}
	case unicode.IsDigit(c), (c == '+' || c == '-') && unicode.IsDigit(l.peekChar()):
		return l.readNumber()
	case isSymbolChar(c):
		return token{Type: tokenSymbol, Value: l.readWhile(isSymbolChar)}
	default:
		return l.fail(fmt.Errorf("%d:%d: unexpected character '%c'", l.line, l.column, c))
	}
}

func isSymbolChar(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune("-_+*/<>=!?.", r)
}
