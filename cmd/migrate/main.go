package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/db"
	"github.com/simpify/spark-backend/pkg/logger"
	"github.com/simpify/spark-backend/pkg/migrate"
)

// command is one migrate subcommand. Commands without needDB only touch the
// migrations dir and are run with a nil *sql.DB.
type command struct {
	usage  string
	needDB bool
	run    func(ctx context.Context, db *sql.DB, dir string, args []string) error
}

var commands = map[string]command{
	"up":     {usage: "up", needDB: true, run: gooseCommand("up")},
	"down":   {usage: "down", needDB: true, run: gooseCommand("down")},
	"status": {usage: "status", needDB: true, run: gooseCommand("status")},
	"version": {usage: "version <YYYYMMDDHHMMSS>", needDB: true, run: func(ctx context.Context, db *sql.DB, dir string, args []string) error {
		if len(args) != 1 {
			return errors.New("version takes exactly one target version")
		}
		return migrate.MigrateToVersion(ctx, db, dir, args[0])
	}},
	"validate": {usage: "validate", run: func(_ context.Context, _ *sql.DB, dir string, _ []string) error {
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}},
	"create": {usage: "create <snake_case_name>", run: func(_ context.Context, _ *sql.DB, dir string, args []string) error {
		if len(args) != 1 {
			return errors.New("create takes exactly one migration name")
		}
		path, err := migrate.NewMigration(dir, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}},
}

func gooseCommand(name string) func(context.Context, *sql.DB, string, []string) error {
	return func(ctx context.Context, db *sql.DB, dir string, _ []string) error {
		return migrate.Run(ctx, db, dir, name)
	}
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(os.Stderr, "usage: migrate [-dir path] <command>")
	for _, name := range names {
		fmt.Fprintln(os.Stderr, "  "+commands[name].usage)
	}
}

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "spark-migrate"})
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "config.load_failed", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "spark-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	driver := cfg.Store.NormalizedDriver()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"driver":  driver,
		"command": args[0],
		"dir":     *dir,
	})

	// goose only manages the postgres schema. Mongo builds its indexes at
	// startup and sqlite uses AutoMigrate, so every command is refused there.
	if _, err := migrate.Dialect(driver); err != nil {
		logg.Error(ctx, "migrate.driver_unsupported", err)
		os.Exit(1)
	}

	if err := runCommand(ctx, cfg, logg, cmd, *dir, args[1:]); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

func runCommand(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd command, dir string, args []string) error {
	if !cmd.needDB {
		return cmd.run(ctx, nil, dir, args)
	}

	client, err := db.New(ctx, cfg.Store, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	if err := cmd.run(ctx, sqlDB, dir, args); err != nil {
		return fmt.Errorf("%s: %w", strings.Fields(cmd.usage)[0], err)
	}
	return nil
}
