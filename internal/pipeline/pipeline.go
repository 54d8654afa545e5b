// Package pipeline chains the compiler front-end stages over one shared
// context: load the interchange documents, populate builtins, run the
// resolve pass.
package pipeline

import (
	"github.com/cdmlang/cdml/internal/config"
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/model"
)

// Context is the state threaded through the stages.
type Context struct {
	// Files are the input document paths, in command-line order.
	Files []string
	Model *model.Model
	Bag   *diagnostics.Bag
	Cfg   *config.Config
}

func NewContext(files []string, cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Context{
		Files: files,
		Model: model.New(),
		Bag:   diagnostics.NewBag(),
		Cfg:   cfg,
	}
}

// Processor is one stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *Context) *Context {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors to collect diagnostics from all stages;
		// the caller decides whether errors abort anything downstream.
	}
	return ctx
}
