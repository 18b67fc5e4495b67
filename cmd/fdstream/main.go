package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/rosedblabs/fdstream/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := cli.NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("error: %v\n", err)
	}
}
