package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/credkeep/credkeep/vault"
	"github.com/spf13/cobra"
)

const newPassphraseEnv = "CREDKEEP_NEW_PASSPHRASE"

var (
	staleSync     bool
	newPassphrase string
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List credentials still using a password their level rotated away from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, staleSync, func(ctx context.Context, s *vault.Session) error {
			if staleSync {
				n := s.SyncStale()
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d credential(s)\n", n)
				return nil
			}
			printCredentials(cmd.OutOrStdout(), s.StaleCredentials())
			return nil
		})
	},
}

var expiredCmd = &cobra.Command{
	Use:   "expired",
	Short: "List security levels whose rotation is due",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *vault.Session) error {
			printLevels(cmd.OutOrStdout(), s.ExpiredSecLevels())
			return nil
		})
	},
}

var rotateKeyCmd = &cobra.Command{
	Use:   "rotate-key",
	Short: "Change the master passphrase",
	Long: `Change the master passphrase. The new passphrase is taken from
--new-passphrase, then $CREDKEEP_NEW_PASSPHRASE, and is otherwise prompted for
twice. Stored credentials are not re-encrypted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *vault.Session) error {
			next := newPassphrase
			if next == "" {
				next = os.Getenv(newPassphraseEnv)
			}
			if next == "" {
				var err error
				if next, err = promptTwice(cmd, "New master passphrase"); err != nil {
					return err
				}
			}
			if err := s.RotateMasterKey(ctx, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Master passphrase changed")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(staleCmd, expiredCmd, rotateKeyCmd)
	staleCmd.Flags().BoolVar(&staleSync, "sync", false, "Copy each level's shared password into its stale credentials")
	rotateKeyCmd.Flags().StringVar(&newPassphrase, "new-passphrase", "", "New master passphrase")
}
