package main

import (
	"os"

	"github.com/venturegate/auth-service/internal/tools/migrate"
)

func main() {
	if err := migrate.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
