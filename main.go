package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"watchparty/cmd"
	"watchparty/database"

	log "github.com/sirupsen/logrus"
)

const migrateUsage = "usage: watchparty migrate [up|down [steps]|status]"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigration(os.Args[2:]); err != nil {
			log.WithError(err).Fatal("Migration failed")
		}
		return
	}

	// Open watch parties are closed and pending wagers expire through the normal shutdown path
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		log.WithError(err).Fatal("Watch party service failed")
	}
}

// runMigration applies the balance history schema migration named by args
func runMigration(args []string) error {
	if len(args) == 0 {
		return errors.New(migrateUsage)
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command %q\n%s", args[0], migrateUsage)
	}
}
