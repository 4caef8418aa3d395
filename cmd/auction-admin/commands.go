package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/morezero/auction-admin/internal/config"
	"github.com/morezero/auction-admin/internal/server"
	"github.com/morezero/auction-admin/pkg/actions"
	"github.com/morezero/auction-admin/pkg/commsutil"
	"github.com/morezero/auction-admin/pkg/compat"
	"github.com/morezero/auction-admin/pkg/events"
	"github.com/morezero/auction-admin/pkg/navigation"
	"github.com/morezero/auction-admin/pkg/store"
)

// siteEnv is what a site command runs against.
type siteEnv struct {
	cfg  *config.Config
	site *server.Site
	disp actions.Dispatcher
	out  io.Writer
}

type siteCommand struct {
	args int
	// run returns a value to print as JSON, or nil when it wrote its own output.
	run func(ctx context.Context, env *siteEnv, args []string) (interface{}, error)
}

var siteCommands = map[string]siteCommand{
	"queue-status": {0, func(ctx context.Context, env *siteEnv, _ []string) (interface{}, error) {
		return actions.GetQueueStatus(ctx, env.disp)
	}},
	"process-queue": {0, func(ctx context.Context, env *siteEnv, _ []string) (interface{}, error) {
		return actions.ProcessQueue(ctx, env.disp)
	}},
	"cron-status": {0, func(ctx context.Context, env *siteEnv, _ []string) (interface{}, error) {
		return actions.GetCronStatus(ctx, env.disp)
	}},
	"cron-run": {1, func(ctx context.Context, env *siteEnv, args []string) (interface{}, error) {
		return actions.RunCronJob(ctx, env.disp, args[0])
	}},
	"cron-toggle": {2, func(ctx context.Context, env *siteEnv, args []string) (interface{}, error) {
		enabled, err := parseSwitch(args[1])
		if err != nil {
			return nil, err
		}
		return actions.ToggleCronJob(ctx, env.disp, args[0], enabled)
	}},
	"cron-reset": {0, func(ctx context.Context, env *siteEnv, _ []string) (interface{}, error) {
		return actions.ResetCronSchedule(ctx, env.disp)
	}},
	"clear-cache": {0, func(ctx context.Context, env *siteEnv, _ []string) (interface{}, error) {
		return actions.ClearCache(ctx, env.disp)
	}},
	"car-url": {2, func(ctx context.Context, env *siteEnv, args []string) (interface{}, error) {
		return actions.GetCarURL(ctx, env.disp, args[0], args[1])
	}},
	"delete-car": {1, func(ctx context.Context, env *siteEnv, args []string) (interface{}, error) {
		return actions.DeleteCar(ctx, env.disp, args[0])
	}},
	"test-connection": {0, runTestConnection},
	"open":            {2, runOpen},
}

// runSiteCommand loads config, resolves credentials and runs one WordPress command.
func runSiteCommand(ctx context.Context, out io.Writer, cmd string, args []string) error {
	c, ok := siteCommands[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q", cmd)
	}
	if len(args) < c.args {
		return fmt.Errorf("%s requires %d argument(s), got %d", cmd, c.args, len(args))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetLogLevel(cfg, os.Stderr)

	site, err := server.Connect(ctx, cfg, nil)
	if err != nil {
		return err
	}
	env := &siteEnv{cfg: cfg, site: site, disp: site.Dispatcher("cli"), out: out}

	result, err := c.run(ctx, env, args)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return printJSON(out, result)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "enable", "enabled", "true", "1":
		return true, nil
	case "off", "disable", "disabled", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

type connectionReport struct {
	Connection *actions.ConnectionResult `json:"connection"`
	Compat     compat.Report             `json:"compat"`
}

func runTestConnection(ctx context.Context, env *siteEnv, _ []string) (interface{}, error) {
	checker, err := compat.NewChecker(env.cfg.PluginVersionConstraint)
	if err != nil {
		return nil, err
	}
	res, err := actions.TestConnection(ctx, env.disp)
	if err != nil {
		return nil, err
	}
	return &connectionReport{Connection: res, Compat: checker.Check(res.PluginVersion)}, nil
}

func runOpen(ctx context.Context, env *siteEnv, args []string) (interface{}, error) {
	guard, err := env.site.Guard(navigation.WriterNavigator{W: env.out})
	if err != nil {
		return nil, err
	}
	decision, err := guard.Open(ctx, args[0], args[1])
	if err != nil {
		return nil, err
	}
	if !decision.Navigated {
		return nil, fmt.Errorf("could not open car page: %s", decision.Reason)
	}
	return nil, nil
}

func runWatch(out io.Writer, subject string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetLogLevel(cfg, os.Stderr)
	if cfg.COMMSURL == "" {
		return fmt.Errorf("COMMS_URL is required")
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-watch")
	if err != nil {
		return err
	}
	defer nc.Drain()

	enc := json.NewEncoder(out)
	sub, err := events.Subscribe(nc, subject, func(e *events.PanelChangedEvent) {
		enc.Encode(e)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := store.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := store.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus(out io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	installed, err := store.MigrationStatus(ctx, pool)
	if err != nil {
		return err
	}
	if installed {
		fmt.Fprintln(out, "Schema installed (panel_snapshots present).")
	} else {
		fmt.Fprintln(out, "Schema not installed; run: auction-admin migrate up")
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Replace path with target database name; query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + dbName
	if err := store.EnsureDatabase(context.Background(), u.String()); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

func runClearHistory(out io.Writer, olderThan string) error {
	var age time.Duration
	if olderThan != "" {
		d, err := time.ParseDuration(olderThan)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration %q", olderThan)
		}
		age = d
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	n, err := store.ClearHistory(ctx, pool, age)
	if err != nil {
		return err
	}
	if n < 0 {
		fmt.Fprintln(out, "History cleared.")
	} else {
		fmt.Fprintf(out, "Removed %d results.\n", n)
	}
	return nil
}

func runHistory(out io.Writer, args []string) error {
	panel, limit := "", 20
	if len(args) > 0 {
		panel = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit %q", args[1])
		}
		limit = n
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	snaps, err := store.NewSnapshotRepository(pool).ListRecent(ctx, panel, limit)
	if err != nil {
		return err
	}
	return printJSON(out, snaps)
}
