package extractor

import (
	"bytes"
	"strconv"
	"strings"
)

// kerning offsets in a TJ array below this value (thousandths of text space)
// are wide enough to read as a word break.
const tjWordGap = -250

type operandKind int

const (
	opNumber operandKind = iota
	opString
	opName
	opArray
)

type operand struct {
	kind operandKind
	num  float64
	str  []byte
	arr  []operand
}

// ContentText returns the text shown by a page content stream. Text
// positioning operators that move to a new line become newlines. Strings
// shown in a font listed in fonts, keyed by resource name, are translated
// through its ToUnicode map. Other strings are decoded as PDFDocEncoding, or
// UTF-16BE when they carry a byte order mark.
func ContentText(content []byte, fonts map[string]*CMap) string {
	w := &textWriter{fonts: fonts}
	lx := &lexer{data: content}
	var stack []operand
	var arrays [][]operand

	push := func(op operand) {
		if n := len(arrays); n > 0 {
			arrays[n-1] = append(arrays[n-1], op)
			return
		}
		stack = append(stack, op)
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokNumber:
			push(operand{kind: opNumber, num: tok.num})
		case tokString:
			push(operand{kind: opString, str: tok.raw})
		case tokName:
			push(operand{kind: opName, str: tok.raw})
		case tokArrayStart:
			arrays = append(arrays, nil)
		case tokArrayEnd:
			if n := len(arrays); n > 0 {
				arr := arrays[n-1]
				arrays = arrays[:n-1]
				push(operand{kind: opArray, arr: arr})
			}
		case tokOperator:
			if len(arrays) > 0 {
				// true, false and null inside an array
				push(operand{kind: opName})
				continue
			}
			w.apply(string(tok.raw), stack)
			if string(tok.raw) == "ID" {
				lx.skipInlineImage()
			}
			stack = stack[:0]
		}
	}
	w.newline()
	return w.out.String()
}

type textWriter struct {
	fonts    map[string]*CMap
	font     *CMap
	out      strings.Builder
	lineText bool
	lastY    float64
	haveY    bool
}

func (w *textWriter) emit(s []byte) {
	var text string
	if w.font != nil {
		text = w.font.Decode(s)
	} else {
		text = decodePDFString(s)
	}
	if text == "" {
		return
	}
	w.out.WriteString(text)
	w.lineText = true
}

func (w *textWriter) newline() {
	if w.lineText {
		w.out.WriteByte('\n')
		w.lineText = false
	}
}

func (w *textWriter) space() {
	if !w.lineText {
		return
	}
	s := w.out.String()
	if s != "" && s[len(s)-1] != ' ' {
		w.out.WriteByte(' ')
	}
}

func (w *textWriter) apply(op string, args []operand) {
	switch op {
	case "Tf":
		if len(args) >= 2 && args[len(args)-2].kind == opName {
			w.font = w.fonts[string(args[len(args)-2].str)]
		}
	case "Tj":
		if s, ok := lastString(args); ok {
			w.emit(s)
		}
	case "'", "\"":
		w.newline()
		if s, ok := lastString(args); ok {
			w.emit(s)
		}
	case "TJ":
		if len(args) == 0 || args[len(args)-1].kind != opArray {
			return
		}
		for _, el := range args[len(args)-1].arr {
			switch el.kind {
			case opString:
				w.emit(el.str)
			case opNumber:
				if el.num < tjWordGap {
					w.space()
				}
			}
		}
	case "Td", "TD":
		if len(args) < 2 {
			return
		}
		if args[len(args)-1].num != 0 {
			w.newline()
		} else if args[len(args)-2].num > 0 {
			w.space()
		}
	case "T*":
		w.newline()
	case "Tm":
		if len(args) < 6 {
			return
		}
		y := args[len(args)-1].num
		if w.haveY && y != w.lastY {
			w.newline()
		} else {
			w.space()
		}
		w.lastY, w.haveY = y, true
	case "ET":
		w.newline()
		w.haveY = false
	}
}

func lastString(args []operand) ([]byte, bool) {
	if len(args) == 0 || args[len(args)-1].kind != opString {
		return nil, false
	}
	return args[len(args)-1].str, true
}

func decodePDFString(s []byte) string {
	if len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF {
		return utf16BE(s[2:])
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, b := range s {
		switch {
		case b == '\n' || b == '\r' || b == '\t':
			sb.WriteByte(' ')
		case b < 0x20:
		case b < 0x80:
			sb.WriteByte(b)
		default:
			sb.WriteRune(rune(b))
		}
	}
	return sb.String()
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokArrayStart
	tokArrayEnd
	tokOperator
	tokOther
)

type token struct {
	kind tokenKind
	raw  []byte
	num  float64
}

type lexer struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return token{kind: tokString, raw: l.literalString()}, true
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokOther}, true
			}
			l.pos++
			return token{kind: tokString, raw: l.hexString()}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '>' {
				l.pos++
			}
			return token{kind: tokOther}, true
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
			return token{kind: tokOther}, true
		case c == '/':
			l.pos++
			start := l.pos
			for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
				l.pos++
			}
			return token{kind: tokName, raw: l.data[start:l.pos]}, true
		default:
			start := l.pos
			for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
				l.pos++
			}
			word := l.data[start:l.pos]
			if n, err := strconv.ParseFloat(string(word), 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, raw: word}, true
		}
	}
	return token{}, false
}

func (l *lexer) literalString() []byte {
	var buf bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return buf.Bytes()
			}
			buf.WriteByte(c)
		case '\\':
			if l.pos >= len(l.data) {
				return buf.Bytes()
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(e)
				}
			}
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

func (l *lexer) hexString() []byte {
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if !isWhite(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage moves past binary inline image data up to its EI operator.
func (l *lexer) skipInlineImage() {
	if l.pos < len(l.data) && isWhite(l.data[l.pos]) {
		l.pos++
	}
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isWhite(l.data[l.pos-1])) &&
			(l.pos+2 == len(l.data) || isWhite(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}
