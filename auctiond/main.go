package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/cloudx-io/blindauction/api"
)

func main() {
	cfg, err := LoadConfig(os.Getenv)
	if err != nil {
		log.Crit("Invalid configuration", "err", err)
	}
	setupLogging(cfg.LogLevel)
	logger := log.Root()

	signer, err := loadSigner(cfg.SigningKeyPath)
	if err != nil {
		log.Crit("Failed to initialize receipt signer", "err", err)
	}
	logger.Info("Receipt signer ready", "kid", signer.KeyID(), "persistent", cfg.SigningKeyPath != "")

	engine, err := NewEngine(cfg, signer, logger.With("component", "engine"))
	if err != nil {
		log.Crit("Failed to create engine", "err", err)
	}

	var journal *Journal
	if cfg.JournalPath != "" {
		var replayed int
		journal, replayed, err = OpenJournal(cfg.JournalPath, func(entry JournalEntry) error {
			return engine.Replay(entry.Request)
		})
		if err != nil {
			log.Crit("Failed to open journal", "path", cfg.JournalPath, "err", err)
		}
		defer journal.Close()
		logger.Info("Journal replayed", "path", cfg.JournalPath, "entries", replayed, "height", engine.ledger.BlockNumber())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seq := NewSequencer(engine, journal, logger.With("component", "sequencer"))
	go seq.Run(ctx)
	go func() {
		// A sequencer that stopped on its own cannot serve anything more
		<-seq.Done()
		stop()
	}()

	if cfg.BlockInterval > 0 {
		go runMiner(ctx, seq, cfg.BlockInterval, logger.With("component", "miner"))
	}

	listener, err := Listen(cfg)
	if err != nil {
		log.Crit("Failed to listen", "err", err)
	}

	server := NewServer(seq, cfg.MaxWorkers, cfg.ReadTimeout, logger.With("component", "server"))
	if err := server.Serve(ctx, listener); err != nil {
		logger.Error("Server stopped", "err", err)
		return
	}
	logger.Info("Auction daemon shut down")
}

func loadSigner(path string) (*api.ReceiptSigner, error) {
	if path == "" {
		return api.GenerateReceiptSigner()
	}
	return api.LoadOrCreateReceiptSigner(path)
}
