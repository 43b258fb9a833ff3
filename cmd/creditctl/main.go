// Command creditctl runs administrative ledger operations against the configured storage.
//
// Usage:
//
//	creditctl migrate
//	creditctl account create --name "Acme"
//	creditctl balance get --account-id <id>
//	creditctl balance adjust --account-id <id> --amount 20 --note "welcome grant"
//	creditctl transactions list --account-id <id> --limit 20
//	creditctl audit verify --account-id <id>
//	creditctl catalog list
//	creditctl token issue --user-id <id> --role member --account-id <id>
package main

import (
	"fmt"
	"log/slog"
	"os"
)

// Version is set during build.
var Version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	app := &cli{logger: logger, out: os.Stdout}
	if err := app.rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
