// migrate applies the embedded SQL migrations: go run ./cmd/migrate [-direction=down]
package main

import (
	"flag"
	"fmt"
	"os"

	"blog-platform/auth-service/internal/config"
	"blog-platform/auth-service/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
