// Команда quota-token выпускает JWT для пользователя или администратора
// по секрету из конфига сервиса. Нужна для выдачи токенов операторам и
// для ручной проверки API.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/issue-quota/internal/config"
	"github.com/magabrotheeeer/issue-quota/internal/lib/jwt"
)

// ErrUnknownRole роль не входит в список поддерживаемых.
var ErrUnknownRole = errors.New("role must be user or admin")

type tokenOptions struct {
	configPath string
	userUID    string
	role       string
	ttl        time.Duration
}

func newRootCmd() *cobra.Command {
	opts := tokenOptions{}

	cmd := &cobra.Command{
		Use:           "quota-token",
		Short:         "Issue a JWT for the quota service",
		Long:          `Signs a token with the jwt_secret_key of the quota service config and prints it to stdout`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := issueToken(opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "path to the service config")
	cmd.Flags().StringVar(&opts.userUID, "user", "", "user id written to the token")
	cmd.Flags().StringVar(&opts.role, "role", jwt.RoleUser, "token role: user or admin")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "token lifetime, token_ttl from the config when zero")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func issueToken(opts tokenOptions) (string, error) {
	const op = "quota-token.issueToken"

	if opts.role != jwt.RoleUser && opts.role != jwt.RoleAdmin {
		return "", fmt.Errorf("%s: %w: %q", op, ErrUnknownRole, opts.role)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ttl := cfg.TokenTTL
	if opts.ttl > 0 {
		ttl = opts.ttl
	}
	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, ttl).GenerateToken(opts.userUID, opts.role)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
