// Command norman uploads models to and invokes models on the Norman
// platform from the shell.
//
// Configuration comes from, in order of precedence: flags, NORMAN_*
// environment variables (a .env file in the working directory is loaded
// first), the file given with --config, and the credentials profile.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
