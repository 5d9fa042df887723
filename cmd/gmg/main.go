package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/goblin-space/core/internal/app"
	"github.com/goblin-space/core/internal/config"
	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/modules/user"
	"github.com/goblin-space/core/internal/pkg/nativelog"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "gmg",
		Usage: "Media core administration",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultConfigPath, Usage: "path to YAML config file"},
		},
		Commands: []*cli.Command{
			dbupdateCommand(),
			migrationsCommand(),
			adduserCommand(),
			makeadminCommand(),
			changepwCommand(),
			deleteuserCommand(),
			cleanupCommand(),
			workerCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openApp loads the config and builds the application with a file backed
// logger. Callers must Shutdown the app and Sync the logger.
func openApp(cmd *cli.Command) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := nativelog.NewZapLogger(cfg.LogDir(), cfg.Debug)
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	a, err := app.New(logger, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}

func withApp(fn func(ctx context.Context, cmd *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, logger, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		defer a.Shutdown()
		return fn(ctx, cmd, a)
	}
}

func dbupdateCommand() *cli.Command {
	return &cli.Command{
		Name:  "dbupdate",
		Usage: "Create or upgrade the database schema",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
			return a.Migrator().Up(ctx)
		}),
	}
}

func migrationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrations",
		Usage: "Inspect schema revisions",
		Commands: []*cli.Command{
			{
				Name:  "pending",
				Usage: "List revisions dbupdate would apply",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
					revs, err := a.Migrator().Pending(ctx)
					if err != nil {
						return err
					}
					if len(revs) == 0 {
						fmt.Println("database is up to date")
						return nil
					}
					for _, r := range revs {
						fmt.Printf("%-8s %-40s %s\n", r.Branch, r.ID, r.Description)
					}
					return nil
				}),
			},
			{
				Name:  "heads",
				Usage: "Show the applied head of every branch",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
					heads, err := a.Migrator().Heads(ctx)
					if err != nil {
						return err
					}
					branches := make([]string, 0, len(heads))
					for b := range heads {
						branches = append(branches, b)
					}
					sort.Strings(branches)
					for _, b := range branches {
						fmt.Printf("%-8s %s\n", b, heads[b])
					}
					return nil
				}),
			},
		},
	}
}

func adduserCommand() *cli.Command {
	return &cli.Command{
		Name:  "adduser",
		Usage: "Create a local user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			return database.Transaction(ctx, a.DB(), func(sess *database.Session) error {
				u, err := a.Users.Create(sess, &user.CreateUserDTO{
					Username: cmd.String("username"),
					Email:    cmd.String("email"),
					Password: cmd.String("password"),
				})
				if err != nil {
					return err
				}
				fmt.Printf("user %s created (id %d)\n", cmd.String("username"), u.ID)
				return nil
			})
		}),
	}
}

func makeadminCommand() *cli.Command {
	return &cli.Command{
		Name:      "makeadmin",
		Usage:     "Grant every privilege to a user",
		ArgsUsage: "<username>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			name := cmd.Args().First()
			if name == "" {
				return errors.New("username required")
			}
			return database.Transaction(ctx, a.DB(), func(sess *database.Session) error {
				return a.Users.MakeAdmin(sess, name)
			})
		}),
	}
}

func changepwCommand() *cli.Command {
	return &cli.Command{
		Name:      "changepw",
		Usage:     "Set a user's password",
		ArgsUsage: "<username> <password>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if cmd.Args().Len() != 2 {
				return errors.New("expected <username> <password>")
			}
			return database.Transaction(ctx, a.DB(), func(sess *database.Session) error {
				return a.Users.ChangePassword(sess, cmd.Args().Get(0), cmd.Args().Get(1))
			})
		}),
	}
}

func deleteuserCommand() *cli.Command {
	return &cli.Command{
		Name:      "deleteuser",
		Usage:     "Delete users and everything they own",
		ArgsUsage: "<username>...",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			names := cmd.Args().Slice()
			if len(names) == 0 {
				return errors.New("at least one username required")
			}
			for _, name := range names {
				err := database.Transaction(ctx, a.DB(), func(sess *database.Session) error {
					return a.Users.Delete(sess, name, false)
				})
				if errors.Is(err, user.ErrNotFound) {
					fmt.Printf("user %s not found\n", name)
					continue
				}
				if err != nil {
					return err
				}
				fmt.Printf("user %s deleted\n", name)
			}
			return nil
		}),
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Run the maintenance jobs once",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
			for _, job := range a.Scheduler().List() {
				if err := a.Scheduler().RunNow(ctx, job.Name); err != nil {
					return fmt.Errorf("%s: %w", job.Name, err)
				}
				fmt.Printf("%s done\n", job.Name)
			}
			return nil
		}),
	}
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Send queued emails and run scheduled jobs until interrupted",
		Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.Start(ctx)
			if w := a.Worker(); w != nil {
				return w.Run(ctx)
			}
			<-ctx.Done()
			return nil
		}),
	}
}
