package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/credkeep/credkeep/internal/config"
	"github.com/credkeep/credkeep/storage"
	"github.com/credkeep/credkeep/storage/bbolt"
	"github.com/credkeep/credkeep/storage/file"
	"github.com/credkeep/credkeep/storage/postgres"
	"github.com/credkeep/credkeep/vault"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const passphraseEnv = "CREDKEEP_PASSPHRASE"

// Replaced in tests.
var readPassword = term.ReadPassword

var errNotInitialized = errors.New("store is not initialized; run credkeep init first")

// loadConfig resolves the configuration from defaults, the --config file and
// the global flags, in that order.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Override(config.Config{
		DataDir:     dataDir,
		Backend:     backend,
		PostgresDSN: postgresDSN,
		LogLevel:    logLevel,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel()
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		repo, err := bbolt.NewRepositoryFromFile(cfg.BoltPath(), nil)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		return file.NewRepository(cfg.DataDir), func() {}, nil
	}
}

// openStore builds the vault for the current flags. The returned func
// releases the backend.
func openStore(cmd *cobra.Command) (*vault.Store, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	repo, closeRepo, err := openRepository(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	store := vault.New(repo,
		vault.WithLogger(newLogger(cmd, cfg)),
		vault.WithKeystoreName(cfg.KeystoreName),
		vault.WithSecLevelName(cfg.SecLevelName),
	)
	return store, cfg, closeRepo, nil
}

// withSession logs in, loads the credentials and runs fn. When save is set
// the credentials and security levels are written back after fn succeeds.
func withSession(cmd *cobra.Command, save bool, fn func(ctx context.Context, s *vault.Session) error) error {
	store, cfg, closeRepo, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeRepo()

	ok, err := store.Initialized()
	if err != nil {
		return err
	}
	if !ok {
		return errNotInitialized
	}

	pass, err := masterPassphrase(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := store.Login(ctx, pass)
	if err != nil {
		return err
	}
	defer s.Logout()

	if err := s.Load(ctx, cfg.CredentialsName); err != nil {
		return err
	}
	if err := fn(ctx, s); err != nil {
		return err
	}
	if !save {
		return nil
	}
	return s.Save(ctx, cfg.CredentialsName)
}

func masterPassphrase(cmd *cobra.Command) (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	return prompt(cmd, "Master passphrase: ")
}

// prompt reads a line from the terminal without echo.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(b), nil
}

// promptTwice asks for a new secret and its confirmation.
func promptTwice(cmd *cobra.Command, label string) (string, error) {
	first, err := prompt(cmd, label+": ")
	if err != nil {
		return "", err
	}
	second, err := prompt(cmd, "Repeat "+strings.ToLower(label)+": ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("entries do not match")
	}
	return first, nil
}

// secretArg returns args[i] when present and prompts for it otherwise.
func secretArg(cmd *cobra.Command, args []string, i int, label string) (string, error) {
	if i < len(args) {
		return args[i], nil
	}
	return prompt(cmd, label+": ")
}

// confirmer asks on the command's input before each deletion unless yes is
// set.
func confirmer(cmd *cobra.Command, yes bool) vault.ConfirmFunc {
	if yes {
		return nil
	}
	in := bufio.NewReader(cmd.InOrStdin())
	return func(match string) bool {
		fmt.Fprintf(cmd.ErrOrStderr(), "Delete %q? [y/N] ", match)
		line, _ := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}
