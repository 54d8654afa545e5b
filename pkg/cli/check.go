package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cdmlang/cdml/internal/config"
	"github.com/cdmlang/cdml/internal/diagnostics"
	"github.com/cdmlang/cdml/internal/pipeline"
	"github.com/cdmlang/cdml/internal/resolver"
	"github.com/cdmlang/cdml/internal/xsn"
)

// ErrProblems signals error-severity diagnostics without printing anything
// further; the emitter already did.
var ErrProblems = errors.New("model has errors")

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Load and resolve models, report diagnostics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if maxProblems > 0 {
		cfg.MaxProblems = maxProblems
	}

	ctx := Check(args, cfg)

	emitter := diagnostics.NewEmitter(cmd.OutOrStdout())
	if noColor {
		emitter.SetColor(false)
	}
	emitter.SetLimit(cfg.MaxProblems)
	emitter.EmitAll(ctx.Bag)

	if ctx.Bag.HasErrors() {
		return ErrProblems
	}
	return nil
}

// Check runs the load and resolve stages over the given files. Exposed for
// embedding and tests.
func Check(files []string, cfg *config.Config) *pipeline.Context {
	p := pipeline.New(
		&xsn.LoadProcessor{},
		&resolver.ResolveProcessor{},
	)
	return p.Run(pipeline.NewContext(files, cfg))
}
