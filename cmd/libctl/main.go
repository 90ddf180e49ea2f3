// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v2"

	"github.com/carterperez-dev/bookshelf/internal/auth"
	"github.com/carterperez-dev/bookshelf/internal/config"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/user"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := &cli.App{
		Name:  "libctl",
		Usage: "operate the bookshelf API: schema, signing keys, accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			migrateCommand(logger),
			keysCommand(),
			adminCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("libctl failed", "error", err)
		os.Exit(1)
	}
}

func migrateCommand(logger *slog.Logger) *cli.Command {
	withMigrator := func(fn func(m *core.Migrator) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			m, err := core.NewMigrator(cfg.Database.URL, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := m.Close(); err != nil {
					logger.Warn("close migrator", "error", err)
				}
			}()

			return fn(m)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Action: withMigrator(func(m *core.Migrator) error { return m.Up() }),
			},
			{
				Name:   "down",
				Usage:  "roll back the most recent migration",
				Action: withMigrator(func(m *core.Migrator) error { return m.Steps(-1) }),
			},
			{
				Name:  "version",
				Usage: "print the applied schema version",
				Action: withMigrator(func(m *core.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Printf("version %d (dirty: %t)\n", version, dirty)
					return nil
				}),
			},
		},
	}
}

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "manage token signing keys",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "write a new ES256 key pair",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "private", Value: "keys/private.pem"},
					&cli.StringFlag{Name: "public", Value: "keys/public.pem"},
					&cli.BoolFlag{Name: "force", Usage: "overwrite existing keys"},
				},
				Action: func(c *cli.Context) error {
					private := c.String("private")
					if _, err := os.Stat(private); err == nil && !c.Bool("force") {
						return fmt.Errorf("%s exists, pass --force to replace it", private)
					}

					if err := auth.GenerateKeyPair(private, c.String("public")); err != nil {
						return err
					}
					fmt.Printf("wrote %s and %s\n", private, c.String("public"))
					return nil
				},
			},
		},
	}
}

func adminCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "manage administrator accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create an administrator account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{
						Name:    "password",
						EnvVars: []string{"ADMIN_PASSWORD"},
						Usage:   "read from ADMIN_PASSWORD when omitted",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					req := user.CreateUserRequest{
						Email:    c.String("email"),
						Password: c.String("password"),
						Name:     c.String("name"),
						Role:     core.RoleAdmin,
					}
					return createAdmin(c.Context, cfg.Database, req, logger)
				},
			},
		},
	}
}

func createAdmin(
	ctx context.Context,
	cfg config.DatabaseConfig,
	req user.CreateUserRequest,
	logger *slog.Logger,
) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(req); err != nil {
		return errors.New(core.FormatValidationError(err))
	}

	db, err := core.NewDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("close database", "error", err)
		}
	}()

	operator := core.Viewer{Role: core.RoleAdmin}
	created, err := user.NewService(user.NewRepository(db.DB)).CreateUser(ctx, operator, req)
	if err != nil {
		return err
	}

	logger.Info("admin created", "user_id", created.ID, "email", created.Email)
	return nil
}
