package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/config"
	"github.com/sakif/snippetshare/internal/logging"
	"github.com/sakif/snippetshare/internal/repository/sqldb"
	"github.com/sakif/snippetshare/internal/server"
	"github.com/sakif/snippetshare/internal/service"
)

// Runner holds the dependencies every command shares and has one method
// per command action.
type Runner struct {
	config    *config.Config
	logger    *slog.Logger
	output    io.Writer
	passwords *auth.PasswordService
}

// RunnerOpts configures a Runner. Zero fields get production defaults.
type RunnerOpts struct {
	Config    *config.Config
	Logger    *slog.Logger
	Output    io.Writer
	Passwords *auth.PasswordService
}

func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Passwords == nil {
		opts.Passwords = auth.NewPasswordService()
	}
	return &Runner{
		config:    opts.Config,
		logger:    opts.Logger,
		output:    opts.Output,
		passwords: opts.Passwords,
	}
}

// Serve runs the API until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, _ *cli.Command) error {
	if err := r.ensureDataDir(); err != nil {
		return err
	}
	srv, err := server.New(ctx, r.config, r.logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func (r *Runner) Migrate(ctx context.Context, _ *cli.Command) error {
	return r.withDB(ctx, func(db *sqldb.DB) error {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.output, "Database is up to date.")
		return nil
	})
}

func (r *Runner) ResetDB(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return errors.New("reset-db deletes all data; re-run with --yes to confirm")
	}
	return r.withDB(ctx, func(db *sqldb.DB) error {
		if err := db.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.output, "Database reset.")
		return nil
	})
}

func (r *Runner) CreateSuperuser(ctx context.Context, cmd *cli.Command) error {
	in := r.superuserInput(cmd)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return errors.New("create-superuser needs --username, --email and --password (or SUPERUSER_* variables)")
	}
	return r.withDB(ctx, func(db *sqldb.DB) error {
		return r.createSuperuser(ctx, db, in)
	})
}

func (r *Runner) SetActive(ctx context.Context, cmd *cli.Command) error {
	ident := cmd.Args().First()
	if ident == "" {
		return errors.New("set-active needs a username or email")
	}
	active := !cmd.Bool("disable")

	return r.withDB(ctx, func(db *sqldb.DB) error {
		users := service.NewUserService(db.Users(), r.passwords, r.logger)
		user, err := users.SetActive(ctx, ident, active)
		if err != nil {
			return fmt.Errorf("set-active %s: %w", ident, err)
		}
		state := "enabled"
		if !active {
			state = "disabled"
		}
		fmt.Fprintf(r.output, "User %s %s.\n", user.Username, state)
		return nil
	})
}

// Deploy is what scripts/deploy.sh runs before starting a new release.
// The superuser step is skipped, not failed, unless username, email and
// password are all configured.
func (r *Runner) Deploy(ctx context.Context, cmd *cli.Command) error {
	return r.withDB(ctx, func(db *sqldb.DB) error {
		if cmd.Bool("reset") {
			r.logger.Warn("resetting database")
			if err := db.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(r.output, "Database reset.")
		} else {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(r.output, "Database is up to date.")
		}

		in := r.superuserInput(cmd)
		if in.Username == "" || in.Email == "" || in.Password == "" {
			fmt.Fprintln(r.output, "No superuser configured, skipping.")
			return nil
		}
		return r.createSuperuser(ctx, db, in)
	})
}

func (r *Runner) createSuperuser(ctx context.Context, db *sqldb.DB, in service.SuperuserInput) error {
	users := service.NewUserService(db.Users(), r.passwords, r.logger)
	user, created, err := users.CreateSuperuser(ctx, in)
	if err != nil {
		return fmt.Errorf("create-superuser: %w", err)
	}
	if created {
		fmt.Fprintf(r.output, "Superuser %s created.\n", user.Username)
	} else {
		fmt.Fprintf(r.output, "Superuser %s already exists.\n", user.Username)
	}
	return nil
}

// superuserInput prefers flags and falls back to the configuration.
func (r *Runner) superuserInput(cmd *cli.Command) service.SuperuserInput {
	pick := func(flag, fallback string) string {
		if v := cmd.String(flag); v != "" {
			return v
		}
		return fallback
	}
	return service.SuperuserInput{
		Username: pick("username", r.config.SuperuserUsername),
		Email:    pick("email", r.config.SuperuserEmail),
		Password: pick("password", r.config.SuperuserPassword),
	}
}

func (r *Runner) withDB(ctx context.Context, fn func(db *sqldb.DB) error) error {
	if err := r.ensureDataDir(); err != nil {
		return err
	}
	db, err := server.OpenDatabase(ctx, r.config)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// ensureDataDir creates the directory of a SQLite file (mkdir -p) so a
// fresh checkout can start without setup.
func (r *Runner) ensureDataDir() error {
	dialect, err := sqldb.ParseDialect(r.config.DBDriver)
	if err != nil || dialect != sqldb.SQLite || r.config.DatabaseURL == ":memory:" {
		return nil
	}
	dir := filepath.Dir(r.config.DatabaseURL)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
