package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/T-X-R/BrainstormAI/cmd/brainstorm/cmds"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _ := cmds.NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
