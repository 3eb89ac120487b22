// Package parser implements a PDF object parser, mapping a stream of
// pdftokenizer tokens onto model.Value trees. It never looks at stream
// payloads or indirect-reference targets: higher-level code (package xref)
// resolves references and extracts stream content, exactly as in the
// teacher's layering (reader/parser/parser.go only ever builds trees, and
// reader/file/xreftable.go is the one that notices a "stream" keyword
// trailing a dictionary).
//
// code adapted from the teacher's reader/parser/parser.go
package parser

import (
	"errors"
	"fmt"

	"github.com/msonnier/pdfcore/model"
	"github.com/msonnier/pdfcore/pdftokenizer"
)

var (
	ErrArrayNotTerminated      = errors.New("parser: array not terminated")
	ErrDictionaryNotTerminated = errors.New("parser: dictionary not terminated")
	ErrDictionaryCorrupt       = errors.New("parser: dictionary key is not a name")
	ErrDictionaryDuplicateKey  = errors.New("parser: duplicate dictionary key")
)

// Parser parses a sequence of objects from a token stream. ContentStreamMode
// disables indirect-reference lookahead (content streams never contain "N G
// R") and makes bare operator keywords legal (e.g. "Tj", "re").
type Parser struct {
	tk                *pdftokenizer.Tokenizer
	ContentStreamMode bool
}

func NewParser(data []byte) *Parser {
	return &Parser{tk: pdftokenizer.NewTokenizer(data)}
}

func NewParserFromTokenizer(tk *pdftokenizer.Tokenizer) *Parser {
	return &Parser{tk: tk}
}

// Tokenizer exposes the underlying token stream, so callers (package xref)
// can inspect byte offsets and continue raw reads after an object has been
// parsed (e.g. to locate a following "stream" keyword).
func (p *Parser) Tokenizer() *pdftokenizer.Tokenizer { return p.tk }

// ParseObject parses all of data as a single object.
func ParseObject(data []byte) (model.Value, error) {
	return NewParser(data).ParseObject()
}

func (p *Parser) ParseObject() (model.Value, error) {
	tok, err := p.tk.NextToken()
	if err != nil {
		return model.Value{}, err
	}
	return p.parseFromToken(tok)
}

func (p *Parser) parseFromToken(tok pdftokenizer.Token) (model.Value, error) {
	switch tok.Kind {
	case pdftokenizer.Name:
		return model.NameV(model.Name(tok.Value)), nil
	case pdftokenizer.String:
		return model.StringLiteral(tok.Value), nil
	case pdftokenizer.StringHex:
		return model.StringHex(tok.Value), nil
	case pdftokenizer.StartArray:
		return p.parseArray()
	case pdftokenizer.StartDic:
		return p.parseDictOrRetryRelaxed()
	case pdftokenizer.Float:
		f, err := tok.Float()
		if err != nil {
			return model.Value{}, fmt.Errorf("parser: invalid real %q: %w", tok.Value, err)
		}
		return model.Real(f), nil
	case pdftokenizer.Integer:
		return p.parseNumericOrIndRef(tok)
	case pdftokenizer.Other:
		return p.parseOther(tok.Value)
	case pdftokenizer.EOF:
		return model.Value{}, errors.New("parser: unexpected end of input")
	default:
		return model.Value{}, fmt.Errorf("parser: unexpected token %s %q", tok.Kind, tok.Value)
	}
}

func (p *Parser) parseArray() (model.Value, error) {
	var items []model.Value
	for {
		tok, err := p.tk.PeekToken()
		if err != nil {
			return model.Value{}, err
		}
		if tok.Kind == pdftokenizer.EndArray {
			p.tk.NextToken()
			return model.ArrayV(items...), nil
		}
		if tok.Kind == pdftokenizer.EOF {
			return model.Value{}, ErrArrayNotTerminated
		}
		p.tk.NextToken()
		v, err := p.parseFromToken(tok)
		if err != nil {
			return model.Value{}, err
		}
		items = append(items, v)
	}
}

// parseDictOrRetryRelaxed mirrors the teacher's "hack for issue #252": try a
// strict dictionary parse first; on failure, rewind and retry in relaxed
// mode, which tolerates a missing value before an end-of-line as an empty
// string instead of erroring.
func (p *Parser) parseDictOrRetryRelaxed() (model.Value, error) {
	mark := p.tk.CurrentPosition()
	v, err := p.parseDict(false)
	if err == nil {
		return v, nil
	}
	p.tk.SetPosition(mark)
	return p.parseDict(true)
}

func (p *Parser) parseDict(relaxed bool) (model.Value, error) {
	d := model.NewDict()
	for {
		tok, err := p.tk.PeekToken()
		if err != nil {
			return model.Value{}, err
		}
		if tok.Kind == pdftokenizer.EndDic {
			p.tk.NextToken()
			return model.DictV(d), nil
		}
		if tok.Kind == pdftokenizer.EOF {
			return model.Value{}, ErrDictionaryNotTerminated
		}
		if tok.Kind != pdftokenizer.Name {
			return model.Value{}, ErrDictionaryCorrupt
		}
		p.tk.NextToken()
		key := model.Name(tok.Value)

		var value model.Value
		if relaxed && p.tk.HasEOLBeforeToken() {
			value = model.StringLiteral("")
		} else {
			valTok, err := p.tk.NextToken()
			if err != nil {
				return model.Value{}, err
			}
			if valTok.Kind == pdftokenizer.EOF {
				return model.Value{}, ErrDictionaryNotTerminated
			}
			value, err = p.parseFromToken(valTok)
			if err != nil {
				return model.Value{}, err
			}
		}

		// The null object as a dictionary value is equivalent to omitting
		// the entry entirely (PDF 7.3.7); Dict.Set already enforces that.
		if _, exists := d.Get(key); exists && !value.IsNull() {
			return model.Value{}, fmt.Errorf("%w: %q", ErrDictionaryDuplicateKey, key)
		}
		d.Set(key, value)
	}
}

func (p *Parser) parseOther(value string) (model.Value, error) {
	switch value {
	case "null":
		return model.Null(), nil
	case "true":
		return model.Bool(true), nil
	case "false":
		return model.Bool(false), nil
	default:
		if p.ContentStreamMode {
			return model.NameV(model.Name(value)), nil // content-stream operator, treated opaquely
		}
		return model.Value{}, fmt.Errorf("parser: unexpected keyword %q outside of a content stream", value)
	}
}

// parseNumericOrIndRef implements the critical lookahead: "N" is just an
// integer unless it is followed by a second integer ("generation") and,
// after THAT, the literal token "R" — in which case all three tokens are
// consumed and an indirect reference is produced. The lookahead tokens are
// left unconsumed when the pattern does not match.
func (p *Parser) parseNumericOrIndRef(first pdftokenizer.Token) (model.Value, error) {
	n, err := first.Int()
	if err != nil {
		return model.Value{}, fmt.Errorf("parser: invalid integer %q: %w", first.Value, err)
	}
	if p.ContentStreamMode {
		return model.Int(int64(n)), nil
	}

	second, err := p.tk.PeekToken()
	if err != nil || second.Kind != pdftokenizer.Integer {
		return model.Int(int64(n)), nil
	}
	third, err := p.tk.PeekPeekToken()
	if err != nil || !third.IsOther("R") {
		return model.Int(int64(n)), nil
	}
	gen, err := second.Int()
	if err != nil {
		return model.Int(int64(n)), nil
	}
	p.tk.NextToken() // consume the generation token
	p.tk.NextToken() // consume "R"
	return model.RefV(model.Reference{Num: uint32(n), Gen: uint16(gen)}), nil
}

// ParseHeader parses an "N G obj" header and leaves the tokenizer positioned
// right after it, ready for ParseObject to read the object's body.
func ParseHeader(tk *pdftokenizer.Tokenizer) (objectNumber, generation int, err error) {
	numTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	if numTok.Kind != pdftokenizer.Integer {
		return 0, 0, fmt.Errorf("parser: expected object number, got %s %q", numTok.Kind, numTok.Value)
	}
	genTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	if genTok.Kind != pdftokenizer.Integer {
		return 0, 0, fmt.Errorf("parser: expected generation number, got %s %q", genTok.Kind, genTok.Value)
	}
	objTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	if !objTok.IsOther("obj") {
		return 0, 0, fmt.Errorf(`parser: expected "obj", got %s %q`, objTok.Kind, objTok.Value)
	}
	n, _ := numTok.Int()
	g, _ := genTok.Int()
	return n, g, nil
}

// SkipStreamKeyword reports whether the next token is the "stream" keyword
// and, if so, returns the byte offset immediately following it (where the
// content-start EOL search should begin) and consumes the token.
func SkipStreamKeyword(tk *pdftokenizer.Tokenizer) (offset int, ok bool, err error) {
	tok, err := tk.PeekToken()
	if err != nil {
		return 0, false, err
	}
	if !tok.IsOther("stream") {
		return 0, false, nil
	}
	tk.NextToken()
	return tok.End, true, nil
}

// StreamContentStart scans forward from offset (immediately after the
// "stream" keyword) past the single mandatory EOL marker per PDF 7.3.8:
// CRLF or LF are canonical; a bare CR is tolerated leniently.
func StreamContentStart(data []byte, offset int) int {
	if offset >= len(data) {
		return offset
	}
	if data[offset] == '\r' {
		offset++
		if offset < len(data) && data[offset] == '\n' {
			offset++
		}
		return offset
	}
	if data[offset] == '\n' {
		return offset + 1
	}
	return offset
}
