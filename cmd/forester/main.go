package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lightprotocol/forester-go/config"
	"github.com/lightprotocol/forester-go/forester"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is main's testable body: it returns the process exit code instead of
// calling os.Exit directly, per the CLI contract — 0 normal, 1 config
// error, 2 fatal protocol error, 130 on SIGINT.
func run(args []string) int {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.NewConfig(args...)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prover := forester.NewRPCProver(cfg.ProverEndpoint, cfg.PollingInterval, cfg.MaxWaitTime)
	log.Info().
		Str("rpc", cfg.RPCEndpoint).
		Str("prover", prover.BaseURL).
		Dur("polling_interval", cfg.PollingInterval).
		Dur("max_wait_time", cfg.MaxWaitTime).
		Msg("forester starting")

	// Tree discovery from a live RPC/indexer is out of scope; operators wire
	// concrete pipelines (one per tree to forest, each holding this prover
	// and an RPCSubmitter over the connection pool) into the registry before
	// this binary is pointed at a real deployment.
	reg := forester.StaticRegistry(nil)

	if err := forester.RunForever(ctx, cfg, reg); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("shutting down on interrupt")
			return 130
		}
		log.Error().Err(err).Msg("forester exited with a fatal error")
		return 2
	}
	if ctx.Err() != nil {
		log.Info().Msg("shutting down on interrupt")
		return 130
	}
	return 0
}
