package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/skobkin/amdgpu-querer/internal/app"
	"github.com/skobkin/amdgpu-querer/internal/report"
	"github.com/skobkin/amdgpu-querer/internal/version"
)

// ExitUsage is returned by the capabilities command for invalid flags or
// arguments.
const ExitUsage = 64

// NewCapabilitiesCommand returns the command that lists which metrics the
// first GPU supports. It also answers --version with the build information.
func NewCapabilitiesCommand(opts Options) *cobra.Command {
	opts = withDefaults(opts)
	logger := opts.Logger

	cmd := &cobra.Command{
		Use:           "amdgpu-capabilities",
		Short:         "Show which metrics the first AMD GPU supports",
		Args:          cobra.NoArgs,
		Version:       version.Current().String(),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Acquire(cmd.Context(), opts.Open, logger, func(s app.Session) error {
				out := cmd.OutOrStdout()
				if _, err := fmt.Fprintf(out, "GPU: %s %s (%s)\n", s.GPU.ID(), s.GPU.Name(), s.GPU.PCI()); err != nil {
					return err
				}

				table := tablewriter.NewTable(out, tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
					Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.Off}},
				})))
				table.Header([]string{"METRIC", "UNIT", "SUPPORTED"})

				for _, m := range report.Metrics() {
					supported := "unknown"
					if ok, err := s.Support.IsSupported(m.Kind); err == nil {
						supported = strconv.FormatBool(ok)
					} else {
						logger.Debug("support query failed", "metric", m.Kind, "err", err)
					}
					if err := table.Append([]string{m.Label, m.Unit, supported}); err != nil {
						return err
					}
				}
				return table.Render()
			})
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}

// ExecuteCapabilities runs the capabilities command and returns the process
// exit code.
func ExecuteCapabilities(ctx context.Context, opts Options, args []string) int {
	opts = withDefaults(opts)
	return execute(ctx, NewCapabilitiesCommand(opts), opts, args, ExitUsage)
}
