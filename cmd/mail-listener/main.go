package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rfpdesk/internal/config"
	"rfpdesk/internal/connectors"
	gmailconnector "rfpdesk/internal/connectors/gmail"
	imapconnector "rfpdesk/internal/connectors/imap"
	"rfpdesk/internal/correlator"
	"rfpdesk/internal/listener"
	"rfpdesk/internal/llm"
	"rfpdesk/internal/pipeline"
	"rfpdesk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(config.InitLogger(cfg))
	defer func() { _ = zap.L().Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	must(cfg.Require("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey))
	extractor := pipeline.NewExtractor(llm.NewClient(cfg.AnthropicAPIKey), cfg.Model)

	conn, err := makeConnector(cfg, cfg.MailProvider)
	must(err)

	corr := correlator.New(db, conn, extractor, cfg.MailboxLabel)
	svc := listener.NewService(db, corr, time.Duration(cfg.ListenerIntervalSec)*time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func makeConnector(cfg config.Config, provider string) (connectors.Connector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
