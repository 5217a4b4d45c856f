package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/credkeep/credkeep/vault"
	"github.com/spf13/cobra"
)

var (
	addUsername  string
	addPassword  string
	addLevel     string
	addFromLevel bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store and set the master passphrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, closeRepo, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeRepo()

		ok, err := store.Initialized()
		if err != nil {
			return err
		}
		if ok {
			return errors.New("store is already initialized")
		}

		pass := passphrase
		if pass == "" {
			pass = os.Getenv(passphraseEnv)
		}
		if pass == "" {
			pass, err = promptTwice(cmd, "New master passphrase")
			if err != nil {
				return err
			}
		}
		ctx := cmd.Context()
		s, err := store.Login(ctx, pass)
		if err != nil {
			return err
		}
		defer s.Logout()
		if err := s.Save(ctx, cfg.CredentialsName); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized store in %s\n", cfg.DataDir)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a credential, or replace the one with the same name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			name := args[0]
			if addFromLevel {
				if addLevel == "" {
					return errors.New("--from-level needs --level")
				}
				return s.AddCredentialFromLevel(name, addUsername, addLevel)
			}
			pw := addPassword
			if pw == "" {
				var err error
				if pw, err = prompt(cmd, "Password: "); err != nil {
					return err
				}
			}
			return s.AddCredential(name, addUsername, pw, addLevel)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a credential with its secrets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *vault.Session) error {
			r, err := s.Reveal(args[0])
			if err != nil {
				return err
			}
			printRevealed(cmd.OutOrStdout(), r)
			return nil
		})
	},
}

func printRevealed(w io.Writer, r vault.Revealed) {
	level := r.SecurityLevel
	if level == "" {
		level = "none"
	}
	fmt.Fprintf(w, "Name:           %s\n", r.Name)
	fmt.Fprintf(w, "Username:       %s\n", r.Username)
	fmt.Fprintf(w, "Password:       %s\n", r.Password)
	fmt.Fprintf(w, "Security level: %s\n", level)
	for i, qa := range r.Questions {
		fmt.Fprintf(w, "Question %d:     %s\n", i+1, qa.Question)
		fmt.Fprintf(w, "  Answer:       %s\n", qa.Answer)
	}
	for i, b := range r.Backups {
		fmt.Fprintf(w, "Backup %d:       %s\n", i+1, b)
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List credential names and usernames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *vault.Session) error {
			printCredentials(cmd.OutOrStdout(), s.Credentials())
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "List credentials whose name contains QUERY, ignoring case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *vault.Session) error {
			printCredentials(cmd.OutOrStdout(), s.Search(args[0]))
			return nil
		})
	},
}

func printCredentials(w io.Writer, creds []*vault.Credential) {
	for _, c := range creds {
		fmt.Fprintf(w, "%s\t%s\n", c.Name(), c.Username())
	}
}

var modifyCmd = &cobra.Command{
	Use:   "modify NAME FIELD [VALUE]",
	Short: "Change the name, username, password or level of a credential",
	Long: `Change one field of a credential. FIELD is one of name (n), username (u),
password (p) or level (l). A missing password value is prompted for; an empty
level removes the assignment.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, err := vault.ParseField(args[1])
		if err != nil {
			return err
		}
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			var value string
			switch {
			case len(args) == 3:
				value = args[2]
			case field == vault.FieldPassword:
				if value, err = prompt(cmd, "Password: "); err != nil {
					return err
				}
			case field != vault.FieldSecurityLevel:
				return fmt.Errorf("a value is needed for %s", field)
			}
			return s.ModifyCredential(args[0], field, value)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			if !s.DeleteCredential(args[0]) {
				return fmt.Errorf("credential %q: %w", args[0], vault.ErrNotFound)
			}
			return nil
		})
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign LEVEL NAME...",
	Short: "Assign a security level to several credentials",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *vault.Session) error {
			n := s.BulkSetSecurityLevel(args[0], args[1:])
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %d of %d credentials\n", args[0], n, len(args)-1)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd, addCmd, showCmd, listCmd, searchCmd, modifyCmd, deleteCmd, assignCmd)
	addCmd.Flags().StringVarP(&addUsername, "username", "u", "", "Username")
	addCmd.Flags().StringVarP(&addPassword, "password", "p", "", "Password (prompted for when empty)")
	addCmd.Flags().StringVarP(&addLevel, "level", "l", "", "Security level code")
	addCmd.Flags().BoolVar(&addFromLevel, "from-level", false, "Use the shared password of --level")
}
