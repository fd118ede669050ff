// Command server runs the gophdrive upload service: the HTTP API on one
// address and gRPC health checks on another.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophdrive/internal/server"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
)

func main() {
	ctx := context.Background()

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "gophdrive: %v\n", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
