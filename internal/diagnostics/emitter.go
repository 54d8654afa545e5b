package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

// Emitter writes diagnostics to a stream, with ANSI colors when the stream
// is a terminal.
type Emitter struct {
	out   io.Writer
	color bool
	limit int
}

func NewEmitter(out io.Writer) *Emitter {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Emitter{out: out, color: color}
}

// SetColor overrides terminal detection (--no-color, tests).
func (e *Emitter) SetColor(enabled bool) { e.color = enabled }

// SetLimit truncates EmitAll output after n diagnostics; 0 means unlimited.
func (e *Emitter) SetLimit(n int) { e.limit = n }

// Emit writes one diagnostic as a single line plus related locations.
func (e *Emitter) Emit(d *Diagnostic) {
	sev := d.Severity.String()
	if e.color {
		sev = e.paint(d.Severity) + sev + ansiReset
	}
	fmt.Fprintf(e.out, "%s: %s: %s [%s]\n", d.Location, sev, d.Message(), d.Code.ID)
	for _, rel := range d.Related {
		fmt.Fprintf(e.out, "  %s: related location\n", rel)
	}
}

// EmitAll writes every diagnostic in the bag in source order, followed by a
// summary line when anything was reported.
func (e *Emitter) EmitAll(b *Bag) {
	for i, d := range b.Sorted() {
		if e.limit > 0 && i == e.limit {
			fmt.Fprintf(e.out, "... %d more problem(s) not shown\n", b.Len()-e.limit)
			break
		}
		e.Emit(d)
	}
	if b.Len() == 0 {
		return
	}
	summary := fmt.Sprintf("%d error(s), %d warning(s)", b.ErrorCount(), b.WarningCount())
	if e.color {
		summary = ansiBold + summary + ansiReset
	}
	fmt.Fprintln(e.out, summary)
}

func (e *Emitter) paint(s Severity) string {
	switch s {
	case Error:
		return ansiRed
	case Warning:
		return ansiYellow
	default:
		return ansiCyan
	}
}
