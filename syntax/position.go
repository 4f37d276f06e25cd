package syntax

import "bytes"

// Point is a row/column position in source text. Rows and columns are
// zero-based; columns count bytes.
type Point struct {
	Row    uint32
	Column uint32
}

// Less reports whether p comes before q.
func (p Point) Less(q Point) bool {
	return p.Row < q.Row || p.Row == q.Row && p.Column < q.Column
}

// Length is the size of a span of text: its byte count and the row/column
// extent it covers. Nodes store lengths instead of absolute positions so that
// a subtree moved by an edit can be reused unchanged.
type Length struct {
	Bytes  uint32
	Extent Point
}

func (a Length) add(b Length) Length {
	if b.Extent.Row > 0 {
		return Length{
			Bytes:  a.Bytes + b.Bytes,
			Extent: Point{Row: a.Extent.Row + b.Extent.Row, Column: b.Extent.Column},
		}
	}
	return Length{
		Bytes:  a.Bytes + b.Bytes,
		Extent: Point{Row: a.Extent.Row, Column: a.Extent.Column + b.Extent.Column},
	}
}

// lengthBetween returns the length of the span [from, to) where both ends
// are given as absolute lengths from the start of the text.
func lengthBetween(from, to Length) Length {
	if to.Extent.Row > from.Extent.Row {
		return Length{
			Bytes:  to.Bytes - from.Bytes,
			Extent: Point{Row: to.Extent.Row - from.Extent.Row, Column: to.Extent.Column},
		}
	}
	return Length{
		Bytes:  to.Bytes - from.Bytes,
		Extent: Point{Column: to.Extent.Column - from.Extent.Column},
	}
}

// measure returns the length of text.
func measure(text []byte) Length {
	rows := bytes.Count(text, []byte{'\n'})
	if rows == 0 {
		return Length{Bytes: uint32(len(text)), Extent: Point{Column: uint32(len(text))}}
	}
	last := bytes.LastIndexByte(text, '\n')
	return Length{
		Bytes:  uint32(len(text)),
		Extent: Point{Row: uint32(rows), Column: uint32(len(text) - last - 1)},
	}
}

// PointAt returns the position of byte offset in src. Offsets past the end
// are clamped.
func PointAt(src []byte, offset int) Point {
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	return measure(src[:offset]).Extent
}

// Range is a span of source text.
type Range struct {
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
}

// Contains reports whether offset lies in [StartByte, EndByte).
func (r Range) Contains(offset uint32) bool {
	return offset >= r.StartByte && offset < r.EndByte
}
