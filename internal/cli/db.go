package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qms/internal/facility"
)

// NewInitDBCommand creates the init-db command.
func NewInitDBCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema",
		Long: `Open the configured database, creating tables and applying migrations.
Safe to run repeatedly.

Examples:
  qms init-db --db ./qms.db
  qms init-db --config qms.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer st.Close()
			data := map[string]string{"driver": st.Driver(), "dsn": opts.Config.Database.DSN}
			return newFormatter(opts, cmd).Success(data,
				fmt.Sprintf("✓ database ready (%s, %s)", st.Driver(), opts.Config.Database.DSN))
		},
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <facility.cue>...",
		Short: "Load screens, queues, counters and parameters",
		Long: `Validate one or more CUE facility files and upsert their content.

Files are unified before validation, so a base file can be combined with
site overrides. Re-seeding updates existing rows in place.

Examples:
  qms seed hospital.cue
  qms seed hospital.cue overrides.cue --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts, cmd)
			def, err := facility.Load(args...)
			if err != nil {
				return f.Fail("invalid facility", err)
			}
			st, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := facility.Seed(cmd.Context(), st, def)
			if err != nil {
				return f.Fail("seed failed", err)
			}
			return f.Success(res, fmt.Sprintf("✓ seeded %d screens, %d queues, %d counters, %d kiosks, %d parameters",
				res.Screens, res.Queues, res.Counters, res.Kiosks, res.Parameters))
		},
	}
}
