// Command loyaltyctl runs the engine's workers and ingress surface against
// a Postgres store. Each subcommand wires store/postgres into exactly one
// independently deployable process: ingress, worker, notifier, settlement.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "loyaltyctl",
	Short: "loyaltyctl runs the loyalty ledger engine's workers and ingress API",
}

// Execute runs the root command. Called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./loyaltyctl.yaml)")
	rootCmd.PersistentFlags().String("db-dsn", "", "postgres connection string (lib/pq DSN or URL)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn, error, fatal")
	_ = v.BindPFlag("db.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(notifierCmd)
	rootCmd.AddCommand(settlementCmd)
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("loyaltyctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("LOYALTYCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "loyaltyctl: reading config: %v\n", err)
		}
	}
}
