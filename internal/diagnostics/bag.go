package diagnostics

import (
	"fmt"
	"sort"

	"github.com/cdmlang/cdml/internal/location"
)

// Bag accumulates diagnostics for one resolve run.
//
// Re-resolving a poisoned reference must not report twice, so Add dedupes on
// (code, location, first argument). The resolve pass is single-threaded; the
// bag is not safe for concurrent use.
type Bag struct {
	diagnostics []*Diagnostic
	seen        map[string]struct{}
	errorCount  int
	warnCount   int
}

func NewBag() *Bag {
	return &Bag{seen: make(map[string]struct{})}
}

// Add records a diagnostic unless an identical one was already reported.
// It returns the diagnostic so callers can attach related locations.
func (b *Bag) Add(d *Diagnostic) *Diagnostic {
	key := dedupeKey(d)
	if _, dup := b.seen[key]; dup {
		return d
	}
	b.seen[key] = struct{}{}
	b.diagnostics = append(b.diagnostics, d)
	switch d.Severity {
	case Error:
		b.errorCount++
	case Warning:
		b.warnCount++
	}
	return d
}

// Report is the convenience form used throughout the resolver.
func (b *Bag) Report(code Code, loc location.Location, args ...interface{}) *Diagnostic {
	return b.Add(New(code, loc, args...))
}

func (b *Bag) HasErrors() bool { return b.errorCount > 0 }

func (b *Bag) ErrorCount() int { return b.errorCount }

func (b *Bag) WarningCount() int { return b.warnCount }

func (b *Bag) Len() int { return len(b.diagnostics) }

// Diagnostics returns the collected diagnostics in reporting order.
func (b *Bag) Diagnostics() []*Diagnostic {
	out := make([]*Diagnostic, len(b.diagnostics))
	copy(out, b.diagnostics)
	return out
}

// Sorted returns the diagnostics ordered by location, then code ID. The
// resolve pass reports in phase order; presentation wants source order.
func (b *Bag) Sorted() []*Diagnostic {
	out := b.Diagnostics()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location.Before(out[j].Location)
		}
		return out[i].Code.ID < out[j].Code.ID
	})
	return out
}

func dedupeKey(d *Diagnostic) string {
	first := ""
	if len(d.Args) > 0 {
		first = fmt.Sprint(d.Args[0])
	}
	return fmt.Sprintf("%s|%s|%s", d.Location, d.Code.ID, first)
}
