package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mumoshu/runjob/pkg/get"
	"github.com/mumoshu/runjob/pkg/logging"
	"github.com/mumoshu/runjob/pkg/shell"
)

const (
	configName = "runjob"
	envPrefix  = "RUNJOB"
)

var logColorKeys = map[string]logrus.Level{
	"panic": logrus.PanicLevel,
	"fatal": logrus.FatalLevel,
	"error": logrus.ErrorLevel,
	"warn":  logrus.WarnLevel,
	"info":  logrus.InfoLevel,
	"debug": logrus.DebugLevel,
}

func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "runjob",
		Short: "Run CI jobs on a single runner",
		Long: `Run CI jobs on a single runner.

Steps run in the declared order. The first failing step skips the remaining
steps, except those marked always_run and the post hooks, which run regardless
so that the runner is always cleaned up.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initialize(cmd)
		},
	}

	// --log_dir and --log-dir are the same flag.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.Replace(name, "_", "-", -1))
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.configFile, "config", "c", "", fmt.Sprintf("Path to config file (default ./%s.yaml)", configName))
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&app.output, "output", "o", logging.FormatText, "Log format. One of: text|json|bunyan|message")
	flags.BoolVarP(&app.color, "color", "C", true, "Colorize output")
	flags.BoolVar(&app.logToStderr, "logtostderr", true, "write log messages to stderr")

	rootCmd.AddCommand(
		newRunCmd(app),
		newValidateCmd(app),
		newVersionCmd(app),
	)

	return rootCmd
}

// initialize reads the config file and environment and configures logging.
// It runs before every subcommand.
func (a *App) initialize(cmd *cobra.Command) error {
	v := a.Viper

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("timeout", 0)
	v.SetDefault("max_output", shell.DefaultMaxOutput)
	v.SetDefault("cache_dir", get.DefaultCacheDir)
	v.SetDefault("allow_ad_hoc_runners", true)

	v.SetDefault("log_color_panic", "red")
	v.SetDefault("log_color_fatal", "red")
	v.SetDefault("log_color_error", "red")
	v.SetDefault("log_color_warn", "yellow")
	v.SetDefault("log_color_info", "cyan")
	v.SetDefault("log_color_debug", "dark_gray")

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.Annotatef(err, "reading config file %s", a.configFile)
		}
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return errors.Annotatef(err, "reading %s.yaml", configName)
			}
		}
	}

	colors := map[logrus.Level]string{}
	for name, level := range logColorKeys {
		if c := v.GetString("log_color_" + name); c != "" {
			colors[level] = c
		}
	}

	err := logging.Configure(a.Log, logging.Options{
		Format:   a.output,
		Verbose:  a.verbose,
		Color:    a.color,
		ToStderr: a.logToStderr,
		Name:     filepath.Base(os.Args[0]),
		Colors:   colors,
		Stdout:   a.Stdout,
		Stderr:   a.Stderr,
	})
	if err != nil {
		return errors.Trace(err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		a.Log.Debugf("using config file %s", used)
	}
	return nil
}
