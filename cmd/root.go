package cmd

import (
	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/courselab/server/internal/api"
	"github.com/courselab/server/internal/config"
	"github.com/courselab/server/internal/database"
	"github.com/courselab/server/internal/logging"
	"github.com/courselab/server/internal/migrate"
	"github.com/courselab/server/internal/migrate/migrations"
)

var (
	configPath string
	logger     zerolog.Logger
)

func newRootCmd(i *do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "courselab-server",
		Short: "CourseLab course assessment server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			// Source order determines precedence. The last source loaded will
			// override any previous values.
			var sources []*config.Source
			if configPath != "" {
				sources = append(sources, config.NewJsonFileSource(configPath))
			}
			sources = append(sources,
				config.NewEnvVarSource(),
				config.NewPFlagSource(cmd.Flags()),
			)

			config.Provide(i, sources...)
			logging.Provide(i)
			database.Provide(i)
			migrate.Provide(i, migrate.CatalogExtras{
				Fs:         migrations.Files(),
				Dir:        migrations.Dir,
				Migrations: migrations.All(),
			})
			api.Provide(i)

			var err error
			logger, err = do.Invoke[zerolog.Logger](i)
			if err != nil {
				return err
			}

			return nil
		},
	}
}

func Execute() {
	i := do.New()
	rootCmd := newRootCmd(i)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config-path", "c", "", "Path to the config.json file for this service.")
	rootCmd.PersistentFlags().StringP("logging.level", "l", "", "The logging level, e.g. 'debug', 'info', 'error', etc.")
	rootCmd.PersistentFlags().BoolP("logging.pretty", "p", false, "Use pretty logging instead of JSON logging.")

	rootCmd.AddCommand(newRunCommand(i))
	rootCmd.AddCommand(newMigrateCommand(i))
	rootCmd.AddCommand(newVersionCommand(i))

	if err := rootCmd.Execute(); err != nil {
		if logger.GetLevel() == zerolog.NoLevel {
			// NoLevel indicates that the logger is uninitialized. In this case
			// we'll use our fallback logger.
			logging.Fatal(err, "command failed")
		} else {
			logger.Fatal().
				Err(err).
				Msg("command failed")
		}
	}
}
