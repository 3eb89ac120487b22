package pdftokenizer

import "testing"

func TestTokenizeBasic(t *testing.T) {
	data := []byte("<< /Type /Catalog /Count 3 /Rect [0 1.5 -2 .5] /Name /#23weird >>")
	toks, err := Tokenize(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []Kind{StartDic, Name, Name, Name, Integer, Name, StartArray, Integer, Float, Integer, Float, EndArray, Name, Name, EndDic}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %v want %v (%q)", i, toks[i].Kind, k, toks[i].Value)
		}
	}
	if toks[9].Value != "-2" {
		t.Errorf("negative integer: got %q", toks[9].Value)
	}
	if toks[13].Value != "#weird" {
		t.Errorf("name escape decode: got %q", toks[13].Value)
	}
}

func TestTokenizeLiteralString(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`(hello)`, "hello"},
		{`(a \(nested\) string)`, "a (nested) string"},
		{"(line\\\ncontinuation)", "linecontinuation"},
		{`(octal \101\102)`, "octal AB"},
		{`(tab\tend)`, "tab\tend"},
	}
	for _, c := range cases {
		toks, err := Tokenize([]byte(c.in))
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if len(toks) != 1 || toks[0].Kind != String {
			t.Fatalf("%s: expected single String token, got %+v", c.in, toks)
		}
		if toks[0].Value != c.want {
			t.Errorf("%s: got %q want %q", c.in, toks[0].Value, c.want)
		}
	}
}

func TestTokenizeHexString(t *testing.T) {
	toks, err := Tokenize([]byte("<48656C6C6F><48656C6C>"))
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens", len(toks))
	}
	if toks[0].Value != "Hello" {
		t.Errorf("got %q", toks[0].Value)
	}
	if toks[1].Value != "Hell" { // even digit count: four whole bytes, no padding
		t.Errorf("got %q", toks[1].Value)
	}
}

func TestTokenizeComment(t *testing.T) {
	toks, err := Tokenize([]byte("1 %a comment\n2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 || toks[1].Kind != Comment {
		t.Fatalf("got %+v", toks)
	}
}

func TestPeekAndPeekPeek(t *testing.T) {
	tk := NewTokenizer([]byte("12 0 R"))
	p1, _ := tk.PeekToken()
	p2, _ := tk.PeekPeekToken()
	if p1.Value != "12" || p2.Value != "0" {
		t.Fatalf("got %+v %+v", p1, p2)
	}
	first, _ := tk.NextToken()
	if first.Value != "12" {
		t.Fatalf("next token should still be 12, got %q", first.Value)
	}
}

func TestIndirectRefLookalikeOffsets(t *testing.T) {
	tk := NewTokenizer([]byte("1 0 obj"))
	tokens := []Token{}
	for {
		tok, err := tk.NextToken()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind == EOF {
			break
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) != 3 || !tokens[2].IsOther("obj") {
		t.Fatalf("got %+v", tokens)
	}
	if tokens[2].End != len("1 0 obj") {
		t.Errorf("end offset: got %d want %d", tokens[2].End, len("1 0 obj"))
	}
}
