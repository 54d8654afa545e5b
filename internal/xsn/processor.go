package xsn

import (
	"github.com/cdmlang/cdml/internal/builtins"
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/location"
	"github.com/cdmlang/cdml/internal/pipeline"
)

// LoadProcessor is the first pipeline stage: populate builtins and parse
// every input document into the shared model.
type LoadProcessor struct{}

func (lp *LoadProcessor) Process(ctx *pipeline.Context) *pipeline.Context {
	builtins.Populate(ctx.Model)
	loader := NewLoader(ctx.Model, ctx.Bag)
	for _, file := range ctx.Files {
		if err := loader.LoadFile(file); err != nil {
			ctx.Bag.Report(diagnostics.XSNSyntax, location.Location{File: file}, err.Error())
		}
	}
	return ctx
}
