package editor

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/odvcencio/mjson5/syntax"
)

// lineStart returns the byte offset where row begins, or len(src) when the
// text has fewer rows.
func lineStart(src []byte, row int) int {
	off := 0
	for r := 0; r < row; r++ {
		i := bytes.IndexByte(src[off:], '\n')
		if i < 0 {
			return len(src)
		}
		off += i + 1
	}
	return off
}

func lineEnd(src []byte, start int) int {
	if i := bytes.IndexByte(src[start:], '\n'); i >= 0 {
		return start + i
	}
	return len(src)
}

// Offset converts a row and byte column into a byte offset. Columns past
// the end of the line clamp to the line end; rows past the end clamp to the
// end of the text.
func Offset(src []byte, p syntax.Point) int {
	start := lineStart(src, int(p.Row))
	end := lineEnd(src, start)
	if off := start + int(p.Column); off < end {
		return off
	}
	return end
}

// Position converts a byte offset into a row and byte column.
func Position(src []byte, offset int) syntax.Point {
	return syntax.PointAt(src, offset)
}

// OffsetUTF16 converts an LSP position (row, UTF-16 code unit column) into
// a byte offset, clamping like Offset. A column inside a surrogate pair
// resolves to the start of the character.
func OffsetUTF16(src []byte, row, col int) int {
	start := lineStart(src, row)
	end := lineEnd(src, start)
	units := 0
	for i := start; i < end; {
		if units >= col {
			return i
		}
		r, size := utf8.DecodeRune(src[i:end])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > col {
			return i
		}
		units += n
		i += size
	}
	return end
}

// PositionUTF16 converts a byte offset into an LSP position.
func PositionUTF16(src []byte, offset int) (row, col int) {
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	p := syntax.PointAt(src, offset)
	start := offset - int(p.Column)
	for i := start; i < offset; {
		r, size := utf8.DecodeRune(src[i:offset])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		col += n
		i += size
	}
	return int(p.Row), col
}
