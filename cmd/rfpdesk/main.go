package main

import (
	"context"
	"flag"
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
	"rfpdesk/internal/mailer"
	"rfpdesk/internal/pipeline"
	"rfpdesk/internal/server"
	"rfpdesk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(config.InitLogger(cfg))
	defer func() { _ = zap.L().Sync() }()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		extractor, comparer := buildPipeline(cfg)
		srv := server.New(db, extractor, comparer, buildMailer(cfg), buildCorrelator(cfg, db, extractor), cfg.HTTPPort)
		must(srv.Run(ctx))
	case "mail:poll":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		rfpID := fs.String("rfp", "", "rfp id to poll for")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*rfpID) == "" {
			must(fmt.Errorf("--rfp is required"))
		}
		extractor, _ := buildPipeline(cfg)
		corr := buildCorrelator(cfg, db, extractor)
		if corr == nil {
			must(fmt.Errorf("mailbox is not configured"))
		}
		result, err := corr.Poll(ctx, *rfpID)
		must(err)
		fmt.Printf("poll done matched=%d created=%d skipped=%d\n", result.Matched, result.Created, result.Skipped)
	case "mail:listen":
		extractor, _ := buildPipeline(cfg)
		corr := buildCorrelator(cfg, db, extractor)
		if corr == nil {
			must(fmt.Errorf("mailbox is not configured"))
		}
		svc := listener.NewService(db, corr, time.Duration(cfg.ListenerIntervalSec)*time.Second)
		must(svc.Run(ctx))
	case "export:comparison":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		rfpID := fs.String("rfp", "", "rfp id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*rfpID) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--rfp and --out are required"))
		}
		rfp, err := db.RfpByID(*rfpID)
		must(err)
		proposals, err := db.ProposalsForRfp(rfp.ID)
		must(err)
		_, comparer := buildPipeline(cfg)
		result := comparer.Compare(ctx, rfp, proposals)
		must(pipeline.ExportComparisonXLSX(rfp, result, *out))
		fmt.Printf("exported %d scored proposals to %s\n", len(result.Scores), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func buildPipeline(cfg config.Config) (*pipeline.Extractor, *pipeline.Comparer) {
	var client llm.Client
	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		client = llm.NewClient(cfg.AnthropicAPIKey)
	} else {
		zap.L().Warn("ANTHROPIC_API_KEY not set, comparison falls back to heuristic ranking")
	}
	return pipeline.NewExtractor(client, cfg.Model), pipeline.NewComparer(client, cfg.Model)
}

func buildMailer(cfg config.Config) *mailer.Mailer {
	m, err := mailer.New(cfg)
	if err != nil {
		zap.L().Warn("SMTP not configured, invitation sending disabled", zap.Error(err))
		return nil
	}
	return m
}

func buildCorrelator(cfg config.Config, db *storage.DB, extractor *pipeline.Extractor) *correlator.Correlator {
	conn, err := makeConnector(cfg, cfg.MailProvider)
	if err != nil {
		zap.L().Warn("mailbox not configured, email polling disabled", zap.Error(err))
		return nil
	}
	return correlator.New(db, conn, extractor, cfg.MailboxLabel)
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

func usage() {
	fmt.Println("usage: rfpdesk <command>")
	fmt.Println("commands:")
	fmt.Println("  serve")
	fmt.Println("  mail:poll --rfp=<id>")
	fmt.Println("  mail:listen")
	fmt.Println("  export:comparison --rfp=<id> --out=./out/comparison.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
