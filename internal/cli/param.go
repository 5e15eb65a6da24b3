package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qms/internal/model"
)

// NewParamCommand creates the param command group.
func NewParamCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "param",
		Short: "Read and write facility parameters",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <code>",
			Short: "Print one parameter",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
					v, ok, err := a.svc.GetParameterValue(cmd.Context(), args[0])
					if err != nil {
						return f.Fail("get parameter", err)
					}
					if !ok {
						return f.Fail("get parameter", model.NotFound("get parameter", fmt.Sprintf("parameter %q is not set", args[0])))
					}
					return f.Success(map[string]string{"code": args[0], "value": v}, v)
				})
			},
		},
		&cobra.Command{
			Use:     "set <code> <value>",
			Short:   "Set a parameter in the database and cache",
			Example: "  qms param set DisplacementLimit 3",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
					if err := a.svc.SetParameter(cmd.Context(), args[0], args[1]); err != nil {
						return f.Fail("set parameter", err)
					}
					return f.Success(map[string]string{"code": args[0], "value": args[1]},
						fmt.Sprintf("✓ %s = %s", args[0], args[1]))
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print every parameter",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
					ps, err := a.svc.Parameters(cmd.Context())
					if err != nil {
						return f.Fail("list parameters", err)
					}
					var b strings.Builder
					for _, code := range slices.Sorted(maps.Keys(ps)) {
						fmt.Fprintf(&b, "%s=%s\n", code, ps[code])
					}
					return f.Success(ps, strings.TrimRight(b.String(), "\n"))
				})
			},
		},
	)
	return cmd
}
