// Package location carries source positions through the model so every
// diagnostic can point back to the declaration that caused it.
package location

import "fmt"

// Position is a 1-based line/column pair. A zero Position means "unknown".
type Position struct {
	Line int
	Col  int
}

func (p Position) IsZero() bool {
	return p.Line == 0 && p.Col == 0
}

// Location is a source range within one file. End may be zero for
// point locations.
type Location struct {
	File  string
	Start Position
	End   Position
}

// At is a shorthand constructor for point locations.
func At(file string, line, col int) Location {
	return Location{File: file, Start: Position{Line: line, Col: col}}
}

func (l Location) IsZero() bool {
	return l.File == "" && l.Start.IsZero() && l.End.IsZero()
}

// String renders "file:line:col" the way compilers conventionally do, so
// terminals can hyperlink it. Unknown parts are omitted.
func (l Location) String() string {
	if l.File == "" {
		if l.Start.IsZero() {
			return "<unknown>"
		}
		return fmt.Sprintf("%d:%d", l.Start.Line, l.Start.Col)
	}
	if l.Start.IsZero() {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Start.Line, l.Start.Col)
}

// Before reports whether l starts before other, ordering first by file name,
// then by position. Used to sort diagnostics into a stable presentation order.
func (l Location) Before(other Location) bool {
	if l.File != other.File {
		return l.File < other.File
	}
	if l.Start.Line != other.Start.Line {
		return l.Start.Line < other.Start.Line
	}
	return l.Start.Col < other.Start.Col
}
