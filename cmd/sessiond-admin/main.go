package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/target/sessiond/config"
	"github.com/target/sessiond/internal/adapters/password"
	"github.com/target/sessiond/internal/bootstrap"
	"github.com/target/sessiond/internal/data"
	"github.com/target/sessiond/internal/devseed"
	"github.com/target/sessiond/internal/migrate"
	"github.com/target/sessiond/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultSessionTimeout   = 30 * time.Second
)

func main() {
	logger := bootstrap.InitLogger(config.LoggingConfig{Level: "info", Format: "text"})

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.ParseConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"migrations": {
			name:        "migrations",
			description: "List embedded migration versions",
			run:         runListMigrations,
		},
		"revoke": {
			name:        "revoke",
			description: "Revoke a session by id (Redis backend)",
			run:         runRevoke,
		},
		"seed-dev-users": {
			name:        "seed-dev-users",
			description: "Create local development accounts (DEV only)",
			run:         runSeedDevUsers,
		},
		"sweep": {
			name:        "sweep",
			description: "Reclaim expired session records",
			run:         runSweep,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: sessiond-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type timeoutOptions struct {
	Timeout time.Duration
}

func parseTimeoutFlags(name string, def time.Duration, args []string) (timeoutOptions, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := timeoutOptions{Timeout: def}
	fs.DurationVar(&opts.Timeout, "timeout", def, "Maximum duration to wait for the command to complete")

	if err := fs.Parse(args); err != nil {
		return timeoutOptions{}, nil, err
	}
	if opts.Timeout <= 0 {
		return timeoutOptions{}, nil, errors.New("--timeout must be greater than zero")
	}
	return opts, fs.Args(), nil
}

func commandDeadline(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, _, err := parseTimeoutFlags("migrate", defaultMigrationTimeout, args)
	if err != nil {
		return err
	}

	ctx, cancel := commandDeadline(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return migrateErr
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runListMigrations(cmdCtx *commandContext, _ []string) error {
	versions, err := migrate.Versions()
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := writef(cmdCtx.Out, "%s\n", v); err != nil {
			return err
		}
	}
	return nil
}

func runRevoke(cmdCtx *commandContext, args []string) error {
	opts, rest, err := parseTimeoutFlags("revoke", defaultSessionTimeout, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("usage: sessiond-admin revoke [--timeout d] <session-id>")
	}

	ctx, cancel := commandDeadline(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	return withSessions(ctx, cmdCtx, func(sessions *service.SessionService) error {
		return revokeSession(ctx, sessions, rest[0], cmdCtx.Out)
	})
}

// revokeSession never echoes the id itself; the fingerprint matches log lines.
func revokeSession(ctx context.Context, sessions *service.SessionService, id string, out io.Writer) error {
	if !service.ValidSessionID(id) {
		return errors.New("not a well-formed session id")
	}
	result, err := sessions.Destroy(ctx, id)
	if err != nil {
		return err
	}
	return writef(out, "session %s: %s\n", service.Fingerprint(id), result)
}

func runSweep(cmdCtx *commandContext, args []string) error {
	opts, _, err := parseTimeoutFlags("sweep", defaultSessionTimeout, args)
	if err != nil {
		return err
	}

	ctx, cancel := commandDeadline(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	return withSessions(ctx, cmdCtx, func(sessions *service.SessionService) error {
		n, sweepErr := sessions.Sweep(ctx)
		if sweepErr != nil {
			return sweepErr
		}
		return writef(cmdCtx.Out, "reclaimed %d expired session(s)\n", n)
	})
}

func runSeedDevUsers(cmdCtx *commandContext, args []string) error {
	if !cmdCtx.Config.IsDev {
		return errors.New("seed-dev-users requires DEV=true")
	}
	opts, _, err := parseTimeoutFlags("seed-dev-users", defaultMigrationTimeout, args)
	if err != nil {
		return err
	}

	ctx, cancel := commandDeadline(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	if err = bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}

	res, err := devseed.Run(ctx, devseed.Services{
		Users:  data.NewUserRepo(db, nil),
		Hasher: password.NewBcryptHasher(0),
		Logger: cmdCtx.Logger,
	}, nil)
	if err != nil {
		return err
	}
	return printSeedResult(cmdCtx.Out, res)
}

func printSeedResult(w io.Writer, res devseed.Result) error {
	emails := make([]string, 0, len(res))
	for email := range res {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	for _, email := range emails {
		status := "exists"
		if res[email] {
			status = "created"
		}
		if err := writef(w, "%-32s %s\n", email, status); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
