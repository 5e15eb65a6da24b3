package cli

import (
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/roach88/qms/internal/display"
)

// NewKioskCommand creates the kiosk command.
func NewKioskCommand(opts *RootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "kiosk <name-or-ip>",
		Short: "Show the queues a kiosk offers",
		Long: `Show the menu of a ticket kiosk, looked up by its name or IP address:
every active queue bound to it in display order with the number of waiting
tickets.

Examples:
  qms kiosk "Lobby Kiosk"
  qms kiosk 10.0.1.20 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				v, err := a.svc.Kiosk(args[0])
				if err != nil {
					return f.Fail("kiosk", err)
				}
				if opts.Format == "json" {
					return f.Success(v, "")
				}
				profile := termenv.Ascii
				if !plain {
					profile = termenv.NewOutput(cmd.OutOrStdout()).EnvColorProfile()
				}
				return display.RenderKiosk(cmd.OutOrStdout(), v, profile)
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "no colors or styling")
	return cmd
}
