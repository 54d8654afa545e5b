package resolver

import (
	"github.com/cdmlang/cdml/internal/pipeline"
)

// ResolveProcessor is the pipeline stage running the resolve pass over the
// loaded model.
type ResolveProcessor struct{}

func (rp *ResolveProcessor) Process(ctx *pipeline.Context) *pipeline.Context {
	New(ctx.Model, ctx.Bag, ctx.Cfg).Resolve()
	return ctx
}
