package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/cdmlang/cdml/internal/config"
)

// extract unpacks a testdata archive into a temp dir and returns the
// extracted file paths in archive order.
func extract(t *testing.T, name string) []string {
	t.Helper()
	archive, err := txtar.ParseFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	dir := t.TempDir()
	var files []string
	for _, f := range archive.Files {
		path := filepath.Join(dir, f.Name)
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
		files = append(files, path)
	}
	return files
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	// Flags are package globals; pin every one so earlier runs can not
	// leak values into this one.
	rootCmd.SetArgs(append([]string{"check", "--no-color", "--config", "", "--max-problems", "0"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCheckResolvesCleanModel(t *testing.T) {
	files := extract(t, "bookshop.txtar")
	ctx := Check(files, config.Default())
	require.False(t, ctx.Bag.HasErrors(), "%v", ctx.Bag.Diagnostics())

	view := ctx.Model.Definition("CatalogService.Books")
	require.NotNil(t, view)
	assert.Equal(t, []string{"id", "title", "author"}, view.Elements.Names())
	assert.True(t, view.Elements.Get("id").Key, "keys not propagated into the projection")

	// The association target is not exposed in the service, so a
	// projection is generated for it.
	exposed := ctx.Model.Definition("CatalogService.Authors")
	require.NotNil(t, exposed, "association target not auto-exposed")
	assert.True(t, exposed.AutoExposed)
	rec := ctx.Model.Redirection(view.Elements.Get("author"))
	require.NotNil(t, rec)
	assert.Same(t, exposed, rec.NewTarget)
}

func TestCheckReportsBrokenModel(t *testing.T) {
	files := extract(t, "broken.txtar")
	ctx := Check(files, config.Default())
	assert.Equal(t, 2, ctx.Bag.ErrorCount())
	for _, d := range ctx.Bag.Diagnostics() {
		assert.Equal(t, "ref-undefined", d.Code.ID)
	}
}

func TestCheckCommandCleanModel(t *testing.T) {
	files := extract(t, "bookshop.txtar")
	out, err := runCommand(t, files...)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCheckCommandBrokenModel(t *testing.T) {
	files := extract(t, "broken.txtar")
	out, err := runCommand(t, files...)
	require.ErrorIs(t, err, ErrProblems)
	assert.Contains(t, out, "[ref-undefined]")
	assert.Contains(t, out, "2 error(s), 0 warning(s)")
	assert.NotContains(t, out, "\033[", "--no-color output carries ANSI escapes")
}

func TestCheckCommandMaxProblems(t *testing.T) {
	files := extract(t, "broken.txtar")
	out, err := runCommand(t, append([]string{"--max-problems", "1"}, files...)...)
	require.ErrorIs(t, err, ErrProblems)
	assert.Equal(t, 1, strings.Count(out, "[ref-undefined]"))
	assert.Contains(t, out, "1 more problem(s) not shown")
}

func TestCheckCommandSeverityOverride(t *testing.T) {
	files := extract(t, "broken.txtar")
	cfgPath := filepath.Join(t.TempDir(), "cdml.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[severities]\nref-undefined = \"warning\"\n"), 0o644))

	out, err := runCommand(t, append([]string{"--config", cfgPath}, files...)...)
	require.NoError(t, err, "downgraded diagnostics should not fail the check")
	assert.Contains(t, out, "warning:")
	assert.Contains(t, out, "0 error(s), 2 warning(s)")
}

func TestCheckCommandRequiresFiles(t *testing.T) {
	_, err := runCommand(t)
	require.Error(t, err)
}
