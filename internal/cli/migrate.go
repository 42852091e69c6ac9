package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateResult reports the image store after the upgrade step.
type MigrateResult struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schema_version"`
	State         string `json:"state"`
	Migrated      bool   `json:"migrated"`
}

func (r MigrateResult) String() string {
	action := "already current"
	if r.Migrated {
		action = "upgraded"
	}
	return fmt.Sprintf("%s: schema version %d (%s), store %s\n", r.Path, r.SchemaVersion, action, r.State)
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the image store",
		Long: `Open the image store, creating it if needed, and run the schema upgrade.

The server does the same on first use; this command lets an operator do it
ahead of time and see the result.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			if err := rootOpts.ensureDataDir(); err != nil {
				return formatter.Fail(ExitCommandError, "failed to create data directory", err)
			}
			st := rootOpts.openStore(rootOpts.logger(cmd.ErrOrStderr()))
			defer st.Close()

			if err := st.Open(commandContext(cmd)); err != nil {
				return formatter.Fail(ExitFailure, "failed to open image store", err)
			}

			stats := st.Stats()
			return formatter.Success(MigrateResult{
				Path:          st.Path(),
				SchemaVersion: stats.SchemaVersion,
				State:         st.State().String(),
				Migrated:      stats.Upgrades > 0,
			})
		},
	}
}
