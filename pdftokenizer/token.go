// Package pdftokenizer implements the lowest level of processing of PDF
// files: splitting a byte slice into lexical tokens.
//
// code ported and adapted from the teacher's pdftokenizer/prtokenizer.go
package pdftokenizer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind uint8

const (
	EOF Kind = iota
	Float
	Integer
	String
	StringHex
	Name
	Comment
	StartArray
	EndArray
	StartDic
	EndDic
	Other // includes keywords such as obj, endobj, stream, R, and content-stream operators
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Float:
		return "Float"
	case Integer:
		return "Integer"
	case String:
		return "String"
	case StringHex:
		return "StringHex"
	case Name:
		return "Name"
	case Comment:
		return "Comment"
	case StartArray:
		return "StartArray"
	case EndArray:
		return "EndArray"
	case StartDic:
		return "StartDic"
	case EndDic:
		return "EndDic"
	case Other:
		return "Other"
	default:
		return "<invalid token>"
	}
}

// Whitespace per PDF spec 7.2.2: NUL, HT, LF, FF, CR, SPACE.
func IsWhitespace(ch byte) bool {
	switch ch {
	case 0, 9, 10, 12, 13, 32:
		return true
	default:
		return false
	}
}

// IsDelimiter reports whitespace and the ten PDF delimiter characters.
func IsDelimiter(ch byte) bool {
	switch ch {
	case 40, 41, 60, 62, 91, 93, 123, 125, 47, 37:
		return true
	default:
		return IsWhitespace(ch)
	}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

// Token is a basic piece of lexical information. Value must be interpreted
// according to Kind, which is left to parsing packages. Start and End are
// byte offsets into the tokenizer's input, spanning the token itself
// (excluding any leading whitespace/comments); they let higher layers (the
// object parser) locate raw payloads such as a stream's content.
type Token struct {
	Kind  Kind
	Value string
	Start int
	End   int
}

func (t Token) Int() (int, error) {
	f, err := t.Float()
	return int(f), err
}

func (t Token) Float() (float64, error) {
	return strconv.ParseFloat(t.Value, 64)
}

// IsOther reports whether t is an Other token with the given value, the
// idiom used throughout the parser to recognize keywords (obj, endobj,
// stream, trailer, xref, R...).
func (t Token) IsOther(value string) bool {
	return t.Kind == Other && t.Value == value
}

// Tokenize consumes all of data, splitting it into tokens, including
// Comment tokens (unlike NextToken, which discards them transparently).
// Prefer the Tokenizer's NextToken when performance matters.
func Tokenize(data []byte) ([]Token, error) {
	tk := NewTokenizer(data)
	var out []Token
	t, err := tk.scanToken()
	for ; t.Kind != EOF && err == nil; t, err = tk.scanToken() {
		out = append(out, t)
	}
	return out, err
}

// Tokenizer reads tokens from a fixed byte slice, with up to two tokens of
// lookahead (PeekToken / PeekPeekToken), needed by the object parser to
// recognize "N G R" indirect references and "N G obj" headers.
type Tokenizer struct {
	data []byte
	pos  int

	queue    []Token
	queueErr error // error encountered while filling the queue, returned once queue drains
}

func NewTokenizer(data []byte) *Tokenizer {
	return &Tokenizer{data: data}
}

// CurrentPosition returns the raw read cursor, i.e. the offset up to which
// bytes have been scanned into tokens (including any queued lookahead).
func (tk *Tokenizer) CurrentPosition() int { return tk.pos }

// Bytes returns the tokenizer's underlying input. Callers (the object
// parser, the xref reader) use this together with a token's Start/End to
// locate raw byte ranges such as a stream's content without re-scanning.
func (tk *Tokenizer) Bytes() []byte { return tk.data }

// SetPosition resets the read cursor and discards any queued lookahead; used
// by the relaxed dictionary re-parse (issue #252 in the teacher lineage).
func (tk *Tokenizer) SetPosition(pos int) {
	tk.pos = pos
	tk.queue = nil
	tk.queueErr = nil
}

// fill ensures at least n tokens are queued, transparently discarding
// comments (spec.md §4.1: "% to EOL" is discarded except the header
// comment, which callers read directly off the byte slice before any
// tokenizer exists). NextToken/PeekToken/PeekPeekToken all go through fill,
// so comments are invisible anywhere a parser consumes tokens; the
// lower-level Tokenize function bypasses fill and sees them.
func (tk *Tokenizer) fill(n int) error {
	for len(tk.queue) < n {
		if tk.queueErr != nil {
			return tk.queueErr
		}
		t, err := tk.scanToken()
		if err != nil {
			tk.queueErr = err
			return err
		}
		if t.Kind == Comment {
			continue
		}
		tk.queue = append(tk.queue, t)
		if t.Kind == EOF {
			return nil
		}
	}
	return nil
}

// PeekToken reads a token without consuming it.
func (tk *Tokenizer) PeekToken() (Token, error) {
	if err := tk.fill(1); err != nil {
		return Token{}, err
	}
	if len(tk.queue) == 0 {
		return Token{Kind: EOF}, nil
	}
	return tk.queue[0], nil
}

// PeekPeekToken reads the token after the next one, without consuming
// anything. Used to distinguish "12 0 R" from a bare integer followed by
// an unrelated second integer.
func (tk *Tokenizer) PeekPeekToken() (Token, error) {
	if err := tk.fill(2); err != nil && len(tk.queue) < 2 {
		return Token{Kind: EOF}, nil
	}
	if len(tk.queue) < 2 {
		return Token{Kind: EOF}, nil
	}
	return tk.queue[1], nil
}

// NextToken reads a token and advances past it.
func (tk *Tokenizer) NextToken() (Token, error) {
	if err := tk.fill(1); err != nil {
		return Token{}, err
	}
	if len(tk.queue) == 0 {
		return Token{Kind: EOF}, nil
	}
	t := tk.queue[0]
	tk.queue = tk.queue[1:]
	return t, nil
}

// HasEOLBeforeToken reports whether the next token is immediately preceded
// by an end-of-line marker, ignoring other whitespace; the relaxed
// dictionary parser uses this to treat a missing value as an empty string.
func (tk *Tokenizer) HasEOLBeforeToken() bool {
	// Re-scan the raw whitespace run before the current position; since
	// scanToken already skipped it, we look at the bytes immediately
	// preceding the next token's recorded Start.
	next, err := tk.PeekToken()
	if err != nil {
		return false
	}
	for i := next.Start - 1; i >= 0; i-- {
		c := tk.data[i]
		if c == '\n' || c == '\r' {
			return true
		}
		if !IsWhitespace(c) {
			return false
		}
	}
	return false
}

func (tk *Tokenizer) read() (byte, bool) {
	if tk.pos >= len(tk.data) {
		return 0, false
	}
	ch := tk.data[tk.pos]
	tk.pos++
	return ch, true
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return c, false
}

func (tk *Tokenizer) scanToken() (Token, error) {
	start := tk.pos
	ch, ok := tk.read()
	for ok && IsWhitespace(ch) {
		start = tk.pos
		ch, ok = tk.read()
	}
	if !ok {
		return Token{Kind: EOF, Start: start, End: start}, nil
	}

	var outBuf []byte
	switch ch {
	case '[':
		return Token{Kind: StartArray, Start: start, End: tk.pos}, nil
	case ']':
		return Token{Kind: EndArray, Start: start, End: tk.pos}, nil
	case '/':
		for {
			ch, ok = tk.read()
			if !ok || IsDelimiter(ch) {
				break
			}
			if ch == '#' {
				h1, ok1 := tk.read()
				h2, ok2 := tk.read()
				if !ok1 || !ok2 {
					return Token{}, errors.New("pdftokenizer: truncated name escape")
				}
				var dst [1]byte
				_, err := hex.Decode(dst[:], []byte{h1, h2})
				if err != nil {
					return Token{}, errors.New("pdftokenizer: corrupted name object")
				}
				outBuf = append(outBuf, dst[0])
				continue
			}
			outBuf = append(outBuf, ch)
		}
		if ok { // we read one byte too many (a delimiter): give it back
			tk.pos--
		}
		return Token{Kind: Name, Value: string(outBuf), Start: start, End: tk.pos}, nil
	case '>':
		ch, ok = tk.read()
		if ch != '>' {
			return Token{}, fmt.Errorf("pdftokenizer: unexpected '%c' after '>'", ch)
		}
		return Token{Kind: EndDic, Start: start, End: tk.pos}, nil
	case '<':
		v1, ok1 := tk.read()
		if v1 == '<' {
			return Token{Kind: StartDic, Start: start, End: tk.pos}, nil
		}
		var (
			v2  byte
			ok2 bool
		)
		for {
			for ok1 && IsWhitespace(v1) {
				v1, ok1 = tk.read()
			}
			if v1 == '>' {
				break
			}
			v1, ok1 = fromHexChar(v1)
			if !ok1 {
				return Token{}, fmt.Errorf("pdftokenizer: invalid hex char %q", v1)
			}
			v2, ok2 = tk.read()
			for ok2 && IsWhitespace(v2) {
				v2, ok2 = tk.read()
			}
			if v2 == '>' {
				outBuf = append(outBuf, v1<<4)
				break
			}
			v2, ok2 = fromHexChar(v2)
			if !ok2 {
				return Token{}, fmt.Errorf("pdftokenizer: invalid hex char %q", v2)
			}
			outBuf = append(outBuf, (v1<<4)+v2)
			v1, ok1 = tk.read()
		}
		return Token{Kind: StringHex, Value: string(outBuf), Start: start, End: tk.pos}, nil
	case '%':
		ch, ok = tk.read()
		for ok && ch != '\r' && ch != '\n' {
			ch, ok = tk.read()
		}
		return Token{Kind: Comment, Start: start, End: tk.pos}, nil
	case '(':
		nesting := 0
		for {
			ch, ok = tk.read()
			if !ok {
				break
			}
			if ch == '(' {
				nesting++
			} else if ch == ')' {
				nesting--
			} else if ch == '\\' {
				lineBreak := false
				ch, ok = tk.read()
				switch ch {
				case 'n':
					ch = '\n'
				case 'r':
					ch = '\r'
				case 't':
					ch = '\t'
				case 'b':
					ch = '\b'
				case 'f':
					ch = '\f'
				case '(', ')', '\\':
				case '\r':
					lineBreak = true
					ch, ok = tk.read()
					if ch != '\n' {
						tk.pos--
					}
				case '\n':
					lineBreak = true
				default:
					if ch < '0' || ch > '7' {
						break
					}
					octal := ch - '0'
					ch, ok = tk.read()
					if ch < '0' || ch > '7' {
						tk.pos--
						ch = octal
						break
					}
					octal = (octal << 3) + ch - '0'
					ch, ok = tk.read()
					if ch < '0' || ch > '7' {
						tk.pos--
						ch = octal
						break
					}
					octal = (octal << 3) + ch - '0'
					ch = octal & 0xff
				}
				if lineBreak {
					continue
				}
				if !ok {
					break
				}
			} else if ch == '\r' {
				ch, ok = tk.read()
				if !ok {
					break
				}
				if ch != '\n' {
					tk.pos--
					ch = '\n'
				}
			}
			if nesting == -1 {
				break
			}
			outBuf = append(outBuf, ch)
		}
		if !ok {
			return Token{}, errors.New("pdftokenizer: unterminated literal string")
		}
		return Token{Kind: String, Value: string(outBuf), Start: start, End: tk.pos}, nil
	case '{':
		return Token{Kind: Other, Value: "{", Start: start, End: tk.pos}, nil
	case '}':
		return Token{Kind: Other, Value: "}", Start: start, End: tk.pos}, nil
	default:
		tk.pos-- // put back the char we peeked at, readNumber wants it
		if token, ok := tk.readNumber(start); ok {
			return token, nil
		}
		ch, ok = tk.read()
		outBuf = append(outBuf, ch)
		ch, ok = tk.read()
		for ok && !IsDelimiter(ch) {
			outBuf = append(outBuf, ch)
			ch, ok = tk.read()
		}
		if ok {
			tk.pos--
		}
		return Token{Kind: Other, Value: string(outBuf), Start: start, End: tk.pos}, nil
	}
}

// readNumber accepts leading +/-, optional decimal point (".5" and "5."
// are both legal), and leniently also PostScript exponent/radix notation
// occasionally emitted by buggy writers.
func (tk *Tokenizer) readNumber(start int) (Token, bool) {
	markedPos := tk.pos

	sb, radix := &strings.Builder{}, &strings.Builder{}
	c, ok := tk.read()
	hasDigit := false
	if c == '+' || c == '-' {
		sb.WriteByte(c)
		c, _ = tk.read()
	}

	for isDigit(c) {
		sb.WriteByte(c)
		c, ok = tk.read()
		hasDigit = true
	}

	trailingDot := false
	if c == '.' {
		sb.WriteByte(c)
		c, _ = tk.read()
		trailingDot = true
	} else if c == '#' {
		radix = sb
		sb = &strings.Builder{}
		c, _ = tk.read()
	} else if sb.Len() == 0 || !hasDigit {
		tk.pos = markedPos
		return Token{}, false
	} else if c == 'E' || c == 'e' {
		sb.WriteByte(c)
		c, ok = tk.read()
		if c == '-' {
			sb.WriteByte(c)
			c, ok = tk.read()
		}
	} else {
		if ok {
			tk.pos--
		}
		return Token{Value: sb.String(), Kind: Integer, Start: start, End: tk.pos}, true
	}

	if isDigit(c) {
		sb.WriteByte(c)
		c, ok = tk.read()
	} else if trailingDot {
		// "5." with no digit after the dot: still a legal real per
		// spec.md §4.1, unlike the teacher's stricter "required digit".
		if ok {
			tk.pos--
		}
		return Token{Value: sb.String(), Kind: Float, Start: start, End: tk.pos}, true
	} else {
		tk.pos = markedPos
		return Token{}, false
	}

	for isDigit(c) {
		sb.WriteByte(c)
		c, ok = tk.read()
	}

	if ok {
		tk.pos--
	}
	if radix := radix.String(); radix != "" {
		intRadix, _ := strconv.Atoi(radix)
		valInt, _ := strconv.ParseInt(sb.String(), intRadix, 0)
		return Token{Value: strconv.Itoa(int(valInt)), Kind: Integer, Start: start, End: tk.pos}, true
	}
	return Token{Value: sb.String(), Kind: Float, Start: start, End: tk.pos}, true
}
