package main

import (
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-wayback-appstats/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cli carries state shared by the subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
	apps    []string
	cfg     *config.Config
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"output-dir":       "output_dir",
	"format":           "output_format",
	"db":               "database_path",
	"timeout":          "timeout",
	"fallback-charset": "fallback_charset",
	"metrics-addr":     "metrics_addr",
	"verbose":          "verbose",
}

func newRootCmd() (*cobra.Command, error) {
	c := &cli{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "appstats",
		Short: "Collect app update dates and sizes from archived iTunes pages",
		Long: `appstats asks the web archive for every capture of each catalog app page,
keeps one capture per day, and extracts the "updated" date and app size
from each. Results are written as one file per app.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (yaml, toml, or json)")
	flags.StringArrayVar(&c.apps, "app", nil, "restrict the run to this catalog app (repeatable)")
	flags.String("output-dir", "", "directory for per-app output files")
	flags.String("format", "", "output format: json, csv, or dual")
	flags.String("db", "", "also write stats to this SQLite database")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.String("fallback-charset", "", "charset for pages that declare none")
	flags.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	if err := bindFlags(c.v, flags); err != nil {
		return nil, err
	}

	cmd.AddCommand(newRunCmd(c))
	cmd.AddCommand(newAppsCmd(c))
	return cmd, nil
}

// bindFlags lets an explicitly set flag override file and environment values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("bind flag %s: not defined", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c *cli) load() error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.SelectApps(c.apps); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	c.cfg = cfg
	return nil
}
