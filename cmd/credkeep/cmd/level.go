package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/credkeep/credkeep/vault"
	"github.com/spf13/cobra"
)

var (
	levelMonths   int
	levelDue      string
	levelPassword string
)

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Manage security levels",
}

var levelAddCmd = &cobra.Command{
	Use:   "add CODE",
	Short: "Add a security level",
	Long: `Add a security level with a rotation period in months. The first due date
defaults to one period from today. --password sets a shared password.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		due := vault.DateOf(time.Now()).AddMonths(levelMonths)
		if levelDue != "" {
			var err error
			if due, err = vault.ParseDate(levelDue); err != nil {
				return err
			}
		}
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			if !s.AddSecLevel(args[0], levelPassword, levelMonths, due) {
				return fmt.Errorf("security level %q exists or is invalid", args[0])
			}
			return nil
		})
	},
}

var levelDeleteCmd = &cobra.Command{
	Use:   "delete CODE",
	Short: "Delete a security level and its password history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			if !s.DeleteSecLevel(args[0]) {
				return fmt.Errorf("security level %q: %w", args[0], vault.ErrNotFound)
			}
			return nil
		})
	},
}

var levelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List security levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *vault.Session) error {
			printLevels(cmd.OutOrStdout(), s.SecLevels())
			return nil
		})
	},
}

func printLevels(w io.Writer, levels []*vault.SecurityLevel) {
	for _, l := range levels {
		shared := "no"
		if l.HasPassword() {
			shared = "yes"
		}
		status := ""
		if l.IsExpired() {
			status = "\texpired"
		}
		fmt.Fprintf(w, "%s\tmonths=%d\tdue=%s\tshared=%s\thistory=%d%s\n",
			l.Code(), l.MonthsValid(), l.NextDue().Effective(), shared, len(l.History()), status)
	}
}

var levelSetPasswordCmd = &cobra.Command{
	Use:   "set-password CODE [PASSWORD]",
	Short: "Replace the shared password of a level",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			pw, err := secretArg(cmd, args, 1, "Shared password")
			if err != nil {
				return err
			}
			return s.SetSecLevelPassword(args[0], pw)
		})
	},
}

var levelClearPasswordCmd = &cobra.Command{
	Use:   "clear-password CODE",
	Short: "Remove the shared password of a level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			if !s.ClearSecLevelPassword(args[0]) {
				return fmt.Errorf("security level %q: %w", args[0], vault.ErrNotFound)
			}
			return nil
		})
	},
}

var levelSetMonthsCmd = &cobra.Command{
	Use:   "set-months CODE MONTHS",
	Short: "Change the rotation period of a level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		months, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("months %q is not a number", args[1])
		}
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			return s.SetSecLevelMonths(args[0], months)
		})
	},
}

var levelSetDueCmd = &cobra.Command{
	Use:   "set-due CODE YYYY/MM/DD",
	Short: "Change the next due date of a level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := vault.ParseDate(args[1])
		if err != nil {
			return err
		}
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			return s.SetSecLevelDue(args[0], due)
		})
	},
}

var levelRotateCmd = &cobra.Command{
	Use:   "rotate CODE [PASSWORD]",
	Short: "Rotate the shared password of a level and move its due date",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			pw, err := secretArg(cmd, args, 1, "New shared password")
			if err != nil {
				return err
			}
			if err := s.RotateSecLevel(args[0], pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s next due %s\n", args[0], s.FindSecLevel(args[0]).NextDue().Effective())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(levelCmd)
	levelCmd.AddCommand(levelAddCmd, levelDeleteCmd, levelListCmd, levelSetPasswordCmd,
		levelClearPasswordCmd, levelSetMonthsCmd, levelSetDueCmd, levelRotateCmd)
	levelAddCmd.Flags().IntVarP(&levelMonths, "months", "m", 3, "Rotation period in months")
	levelAddCmd.Flags().StringVar(&levelDue, "due", "", "First due date, YYYY/MM/DD")
	levelAddCmd.Flags().StringVarP(&levelPassword, "password", "p", "", "Shared password")
}
