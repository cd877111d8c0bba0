package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sksthrs/mekiku/internal/harness"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Steps bool // print every step's decision
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <scenario>",
		Short: "Run a scenario and show the resulting view",
		Long: `Run one scenario and print the final window as a captioning display
would show it. Assertions are evaluated but do not change the exit code.

Examples:
  mekiku play ./scenarios/out_of_order.yaml
  mekiku play ./scenarios/erase_and_scroll.yaml --steps
  mekiku play ./scenarios/wrap.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Steps, "steps", false, "print the decision of every step")

	return cmd
}

func runPlay(opts *PlayOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.RunWithConfig(cfg, scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}

	w := cmd.OutOrStdout()
	if opts.Steps {
		for _, ev := range result.Trace {
			fmt.Fprintf(w, "[%d] %-7s %-10s %-7s %s", ev.Step, ev.Type, ev.Sender, ev.Kind, ev.Flags)
			if ev.Snap {
				fmt.Fprint(w, " snap")
			}
			if ev.Error != "" {
				fmt.Fprintf(w, " error=%s", ev.Error)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, renderWindow(result.Visible))
	if !result.Pass {
		for _, e := range result.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), e)
		}
	}
	return nil
}

// renderWindow frames the visible lines like a caption display.
func renderWindow(lines []string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
