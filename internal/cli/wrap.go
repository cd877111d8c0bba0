package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sksthrs/mekiku/internal/reflow"
)

// WrapOptions holds flags for the wrap command.
type WrapOptions struct {
	*RootOptions
	Columns int
	Runes   bool // count runes instead of terminal cells
}

// WrapResult is the JSON payload of the wrap command.
type WrapResult struct {
	Columns int      `json:"columns"`
	Lines   []string `json:"lines"`
}

// NewWrapCommand creates the wrap command.
func NewWrapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WrapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "wrap",
		Short: "Reflow stdin to the display width",
		Long: `Wrap text from stdin the way the transcript wraps caption entries.

Widths are measured in terminal cells, so wide East Asian characters take
two columns. With --runes every character takes one column. The default
width comes from the display.columns config setting.

Examples:
  echo "a long caption line" | mekiku wrap --columns 8
  mekiku wrap --runes < caption.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrap(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Columns, "columns", 0, "display width (default from config)")
	cmd.Flags().BoolVar(&opts.Runes, "runes", false, "measure runes instead of terminal cells")

	return cmd
}

func runWrap(opts *WrapOptions, cmd *cobra.Command) error {
	columns := opts.Columns
	if columns == 0 {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		columns = cfg.Display.Columns
	}
	if columns < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid columns %d: must be positive", columns))
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stdin", err)
	}
	text := strings.TrimSuffix(string(data), "\n")

	var m reflow.Measurer = reflow.Cells{Columns: columns}
	if opts.Runes {
		m = reflow.Fixed{Columns: columns}
	}
	lines := reflow.Wrap(text, m)

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(WrapResult{Columns: columns, Lines: lines})
	}

	w := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}
