package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/farmos/cmd/farmos/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "farmos",
		Short: "farmOS API CLI",
		Long: `A command-line interface for farmOS servers.

Talks to the JSONAPI of farmOS 2.x and the RESTWS API of farmOS 1.x.
Logs, assets, taxonomy terms and areas can be fetched, created, updated
and deleted, and subrequest blueprints sent in a single call.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.farmos/config.yml)")
	rootCmd.PersistentFlags().StringP("profile", "P", "", "profile name (default is the current profile)")
	rootCmd.PersistentFlags().StringP("hostname", "H", "", "farmOS server URL")
	rootCmd.PersistentFlags().String("api-style", "", "API style (jsonapi, legacy)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("token-store", "", "shared token store (memory, redis, nats)")

	for _, name := range []string{"config", "profile", "hostname", "api-style", "output", "verbose", "token-store"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewLogoutCommand())
	rootCmd.AddCommand(commands.NewProfilesCommand())
	rootCmd.AddCommand(commands.NewInfoCommand())
	rootCmd.AddCommand(commands.NewGetCommand())
	rootCmd.AddCommand(commands.NewIterateCommand())
	rootCmd.AddCommand(commands.NewSendCommand())
	rootCmd.AddCommand(commands.NewDeleteCommand())
	rootCmd.AddCommand(commands.NewSubrequestsCommand())

	return rootCmd
}

func initConfig() {
	// FARMOS_OUTPUT, FARMOS_PROFILE and friends
	viper.SetEnvPrefix("FARMOS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	cobra.OnInitialize(initConfig)

	err := newRootCommand().Execute()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
