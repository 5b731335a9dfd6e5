// Command coinledger runs the coin ledger API and its maintenance tasks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/router-for-me/CoinLedger/internal/app"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: coinledger <command> [-config path]

commands:
  serve              run the front and admin HTTP APIs
  migrate            create or update the database schema
  verify-audit       replay the audit chain, exit 1 when it is broken
  purge-idempotency  delete expired idempotency keys
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml (defaults to $COINLEDGER_CONFIG or ./config.yaml)")
	_ = fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	switch command {
	case "serve":
		if errRun := app.RunServer(ctx, cfg); errRun != nil {
			log.Fatalf("serve: %v", errRun)
		}
	case "migrate":
		if errMigrate := app.Migrate(ctx, cfg); errMigrate != nil {
			log.Fatalf("migrate: %v", errMigrate)
		}
	case "verify-audit":
		report, errVerify := app.VerifyAudit(ctx, cfg)
		if errVerify != nil {
			log.Fatalf("verify audit: %v", errVerify)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		if !report.Valid {
			os.Exit(1)
		}
	case "purge-idempotency":
		removed, errPurge := app.PurgeIdempotency(ctx, cfg)
		if errPurge != nil {
			log.Fatalf("purge idempotency: %v", errPurge)
		}
		log.Infof("removed %d expired idempotency keys", removed)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
