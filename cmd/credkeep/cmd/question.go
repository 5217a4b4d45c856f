package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/credkeep/credkeep/vault"
	"github.com/spf13/cobra"
)

var (
	deleteYes   bool
	deleteIndex int
)

var questionCmd = &cobra.Command{
	Use:   "question",
	Short: "Manage the security questions of a credential",
}

var questionAddCmd = &cobra.Command{
	Use:   "add NAME QUESTION ANSWER [QUESTION ANSWER]...",
	Short: "Add security questions with their answers",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 3 || len(args)%2 == 0 {
			return errors.New("want a credential name followed by question and answer pairs")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var qas []vault.QA
		for i := 1; i < len(args); i += 2 {
			qas = append(qas, vault.QA{Question: args[i], Answer: args[i+1]})
		}
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			return s.AddQuestions(args[0], qas)
		})
	},
}

var questionDeleteCmd = &cobra.Command{
	Use:   "delete NAME [QUERY]...",
	Short: "Delete security questions by text match or by --index",
	Long: `Delete security questions. Each QUERY removes the first question whose
text contains it, ignoring case, after confirmation. With --index the question
at that 1-based position is removed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			if deleteIndex > 0 {
				if !s.DeleteQuestion(args[0], deleteIndex-1) {
					return fmt.Errorf("no question %d on %q", deleteIndex, args[0])
				}
				return nil
			}
			n := s.DeleteQuestions(args[0], args[1:], confirmer(cmd, deleteYes))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d question(s)\n", n)
			return nil
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage the backup codes of a credential",
}

var backupAddCmd = &cobra.Command{
	Use:   "add NAME CODE...",
	Short: "Add backup codes",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			return s.AddBackups(args[0], args[1:])
		})
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete NAME [QUERY]...",
	Short: "Delete backup codes by match or by --index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			if deleteIndex > 0 {
				if !s.DeleteBackup(args[0], deleteIndex-1) {
					return fmt.Errorf("no backup code %d on %q", deleteIndex, args[0])
				}
				return nil
			}
			n := s.DeleteBackups(args[0], args[1:], confirmer(cmd, deleteYes))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d backup code(s)\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(questionCmd, backupCmd)
	questionCmd.AddCommand(questionAddCmd, questionDeleteCmd)
	backupCmd.AddCommand(backupAddCmd, backupDeleteCmd)
	for _, c := range []*cobra.Command{questionDeleteCmd, backupDeleteCmd} {
		c.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Delete without asking")
		c.Flags().IntVar(&deleteIndex, "index", 0, "Delete the entry at this 1-based position")
	}
}
