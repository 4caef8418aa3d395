// Package main is the entrypoint for auction-admin.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/morezero/auction-admin/internal/server"
	"github.com/morezero/auction-admin/pkg/panels"
)

const usage = `Usage: auction-admin [command]
       auction-admin serve                       Start the admin dashboard (HTTP, pollers, optional COMMS and DB).
       auction-admin test-connection             Test the auction API connection and plugin version.
       auction-admin queue-status                Show queue statistics.
       auction-admin process-queue               Process the queue now.
       auction-admin cron-status                 Show scheduled jobs.
       auction-admin cron-run <job>              Run one scheduled job now.
       auction-admin cron-toggle <job> <on|off>  Enable or disable a scheduled job.
       auction-admin cron-reset                  Reset the cron schedule.
       auction-admin clear-cache                 Clear the plugin cache.
       auction-admin car-url <id> <market>       Look up a car page URL.
       auction-admin delete-car <id>             Delete a car.
       auction-admin open <id> <market>          Resolve the car page to open (create-if-missing, preview fallback).
       auction-admin watch [subject]             Print panel events published over COMMS.
       auction-admin migrate up|status           Run or check database migrations.
       auction-admin ensure-db [name]            Create database if missing (default name: auction_admin_test).
       auction-admin clear-history [older-than]  Delete recorded results (all, or older than a duration such as 720h).
       auction-admin history [panel] [limit]     Show recent recorded results.

Commands:
  serve           (default) Start the dashboard.
  migrate up      Run database migrations only.
  migrate status  Show whether the schema is installed.

Environment: AUCTION_SITE_URL (required), AUCTION_AJAX_URL, AUCTION_NONCE, AUCTION_ADMIN_PAGE_URL,
AUCTION_COOKIE, COMMS_URL, DATABASE_URL, MIGRATION_PATH, HTTP_PORT (default 8080), AUCTION_CONFIG_FILE. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "migrate":
		if len(args) < 1 {
			log.Fatalf("auction-admin migrate: require subcommand (up, status)")
		}
		switch args[0] {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("auction-admin migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(os.Stdout); err != nil {
				log.Fatalf("auction-admin migrate status: %v", err)
			}
		default:
			log.Fatalf("auction-admin migrate: unknown subcommand %q (use up, status)", args[0])
		}
		return
	case "ensure-db":
		dbName := "auction_admin_test"
		if len(args) > 0 && args[0] != "" {
			dbName = args[0]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("auction-admin ensure-db: %v", err)
		}
		return
	case "clear-history":
		olderThan := ""
		if len(args) > 0 {
			olderThan = args[0]
		}
		if err := runClearHistory(os.Stdout, olderThan); err != nil {
			log.Fatalf("auction-admin clear-history: %v", err)
		}
		return
	case "history":
		if err := runHistory(os.Stdout, args); err != nil {
			log.Fatalf("auction-admin history: %v", err)
		}
		return
	case "watch":
		subject := ""
		if len(args) > 0 {
			subject = args[0]
		}
		if err := runWatch(os.Stdout, subject); err != nil {
			log.Fatalf("auction-admin watch: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		if _, ok := siteCommands[cmd]; !ok {
			fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
			os.Exit(1)
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err := runSiteCommand(ctx, os.Stdout, cmd, args)
		stop()
		if err != nil {
			log.Fatalf("auction-admin %s: %s", cmd, panels.FailureText(err))
		}
		return
	}

	if err := server.Run(); err != nil {
		log.Fatalf("auction-admin: %v", err)
	}
}
