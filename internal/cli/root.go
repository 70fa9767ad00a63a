package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"showdown-grid/internal/lib/slogcustom"
)

const envPrefix = "SHOWDOWN"

type rootOptions struct {
	configPath string
	port       string
	verbose    bool
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "showdown",
		Short:         "Jeopardy-style quiz host: REST API server and terminal console",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slogcustom.NewCustomHandler(os.Stderr, level)))
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: SHOWDOWN_CONFIG)")
	fs.StringVarP(&opts.port, "port", "p", "", "port to listen on, overrides the config file (env: SHOWDOWN_PORT)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output (env: SHOWDOWN_VERBOSE)")
	bindEnv(v, fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newPlayCmd(opts, v))
	return cmd
}

// bindEnv fills every flag not given on the command line from its SHOWDOWN_ variable.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
