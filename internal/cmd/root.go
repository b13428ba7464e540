// Package cmd implements the mfwrun command line interface. The run
// command translates flags, including legacy spellings, into a run request
// and drives the planner, scheduler, and supervisor; validate and list are
// inspection commands over the same configuration and descriptors.
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/asagiri-dev/mfwrun/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "mfwrun",
	Short: "Declarative automation-resource task runner",
	Long: `mfwrun loads automation resource descriptors, resolves their option
schemas against saved configuration, and runs each resource's task list
across one or more devices concurrently, with bounded run time and
graceful shutdown.`,
	SilenceUsage: true,
}

// Execute runs the root command. Legacy flag spellings are rewritten
// before cobra sees the arguments.
func Execute() error {
	rootCmd.SetArgs(NormalizeArgs(os.Args[1:]))
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config-file", "", "config file (default is $HOME/.config/mfwrun/config.yaml)")
	_ = viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config-file"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file.
	config.SetDefaults()

	if cfgFile := viper.GetString("config_file"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MFWRUN")
	// Replace dots with underscores for nested keys in env vars
	// e.g., MFWRUN_RUN_GRACE_PERIOD_SECONDS for run.grace_period_seconds.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found).
	_ = viper.ReadInConfig()
}
