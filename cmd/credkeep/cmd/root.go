package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	dataDir     string
	backend     string
	logLevel    string
	postgresDSN string
	passphrase  string
)

var rootCmd = &cobra.Command{
	Use:   "credkeep",
	Short: "credkeep is a local encrypted credential store",
	Long: `A local store for site credentials, security questions and backup codes,
encrypted under a single master passphrase. Security levels group credentials
that share a password rotation schedule.

The master passphrase is taken from --passphrase, then $CREDKEEP_PASSPHRASE,
and is otherwise prompted for.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the store (default ~/.credkeep)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", `Storage backend: "file", "bolt" or "postgres"`)
	rootCmd.PersistentFlags().StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL connection string for the postgres backend")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "Master passphrase")
}
