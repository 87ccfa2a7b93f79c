package extractor

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

// maxCodeLen is the longest character code a CMap may define.
const maxCodeLen = 4

type codespace struct {
	lo, hi []byte
}

type bfrange struct {
	lo, hi []byte
	dst    []uint16
	arr    []string
}

// CMap is a parsed ToUnicode map. It translates the character codes a font
// shows, including the two-byte glyph ids of Identity-H fonts, to text.
type CMap struct {
	spaces []codespace
	chars  map[string]string
	ranges []bfrange
	width  int
}

// ParseCMap reads the codespace, bfchar and bfrange sections of a ToUnicode
// stream. Malformed entries are skipped.
func ParseCMap(data []byte) *CMap {
	cm := &CMap{chars: make(map[string]string)}
	lx := &lexer{data: data}
	var args []operand
	var arrays [][]operand

	push := func(op operand) {
		if n := len(arrays); n > 0 {
			arrays[n-1] = append(arrays[n-1], op)
			return
		}
		args = append(args, op)
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
				continue
			}
			switch string(tok.raw) {
			case "endcodespacerange":
				cm.addSpaces(args)
			case "endbfchar":
				cm.addChars(args)
			case "endbfrange":
				cm.addRanges(args)
			}
			args = args[:0]
		}
	}
	return cm
}

func (cm *CMap) addSpaces(args []operand) {
	for i := 0; i+1 < len(args); i += 2 {
		lo, hi := args[i], args[i+1]
		if !validRange(lo, hi) {
			continue
		}
		cm.spaces = append(cm.spaces, codespace{lo: lo.str, hi: hi.str})
	}
}

func (cm *CMap) addChars(args []operand) {
	for i := 0; i+1 < len(args); i += 2 {
		src, dst := args[i], args[i+1]
		if src.kind != opString || dst.kind != opString || len(src.str) == 0 {
			continue
		}
		cm.chars[string(src.str)] = utf16BE(dst.str)
		cm.noteWidth(len(src.str))
	}
}

func (cm *CMap) addRanges(args []operand) {
	for i := 0; i+2 < len(args); i += 3 {
		lo, hi, dst := args[i], args[i+1], args[i+2]
		if !validRange(lo, hi) {
			continue
		}
		r := bfrange{lo: lo.str, hi: hi.str}
		switch dst.kind {
		case opString:
			r.dst = utf16Units(dst.str)
			if len(r.dst) == 0 {
				continue
			}
		case opArray:
			for _, el := range dst.arr {
				r.arr = append(r.arr, utf16BE(el.str))
			}
		default:
			continue
		}
		cm.ranges = append(cm.ranges, r)
		cm.noteWidth(len(lo.str))
	}
}

func validRange(lo, hi operand) bool {
	return lo.kind == opString && hi.kind == opString &&
		len(lo.str) > 0 && len(lo.str) <= maxCodeLen && len(lo.str) == len(hi.str)
}

func (cm *CMap) noteWidth(n int) {
	if cm.width == 0 {
		cm.width = n
	}
}

// Decode translates a shown string. Codes without a mapping are dropped.
func (cm *CMap) Decode(s []byte) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		n := cm.codeLen(s[i:])
		if text, ok := cm.lookup(s[i : i+n]); ok {
			sb.WriteString(text)
		}
		i += n
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case r < 0x20:
			return -1
		}
		return r
	}, sb.String())
}

func (cm *CMap) codeLen(s []byte) int {
	for _, cs := range cm.spaces {
		n := len(cs.lo)
		if n <= len(s) && inRange(s[:n], cs.lo, cs.hi) {
			return n
		}
	}
	if cm.width > 0 && cm.width <= len(s) {
		return cm.width
	}
	return 1
}

func (cm *CMap) lookup(code []byte) (string, bool) {
	if text, ok := cm.chars[string(code)]; ok {
		return text, true
	}
	for _, r := range cm.ranges {
		if len(r.lo) != len(code) || !inRange(code, r.lo, r.hi) {
			continue
		}
		off := codeValue(code) - codeValue(r.lo)
		if r.arr != nil {
			if off < uint64(len(r.arr)) {
				return r.arr[off], true
			}
			return "", false
		}
		units := append([]uint16(nil), r.dst...)
		units[len(units)-1] += uint16(off)
		return string(utf16.Decode(units)), true
	}
	return "", false
}

// inRange compares byte by byte, as codespace ranges are defined.
func inRange(code, lo, hi []byte) bool {
	for i := range code {
		if code[i] < lo[i] || code[i] > hi[i] {
			return false
		}
	}
	return true
}

func codeValue(code []byte) uint64 {
	var buf [8]byte
	copy(buf[8-len(code):], code)
	return binary.BigEndian.Uint64(buf[:])
}

func utf16Units(b []byte) []uint16 {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	if len(b)%2 == 1 {
		units = append(units, uint16(b[len(b)-1]))
	}
	return units
}

func utf16BE(b []byte) string {
	return string(utf16.Decode(utf16Units(b)))
}
