package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// version is set at build time via -ldflags.
var version = "dev"

// errUnreachable makes the process exit non-zero after a check that found
// unreachable images. The report itself has already been printed.
var errUnreachable = errors.New("unreachable images found")

func main() {
	// A missing .env is normal; the environment may already be populated.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errUnreachable) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
