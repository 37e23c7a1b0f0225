// Command archivist parses MBOX and OLM email archives, runs the
// account/purchase/subscription/newsletter detectors against them, and
// reports or persists the results.
//
// Usage:
//
//	archivist parse [-db out.db] [-report out.html] [-export-contacts contacts.vcf] <archive-file>
//	archivist stats <archive.db>
//	archivist version
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/Technical-1/email-archive-parser/internal/archive"
	"github.com/Technical-1/email-archive-parser/internal/buildinfo"
	"github.com/Technical-1/email-archive-parser/internal/config"
	"github.com/Technical-1/email-archive-parser/internal/olmcontacts"
	"github.com/Technical-1/email-archive-parser/internal/report"
	"github.com/Technical-1/email-archive-parser/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	switch flag.Arg(0) {
	case "parse":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: archivist parse [-db out.db] [-report out.html] [-export-contacts contacts.vcf] <archive-file>")
			os.Exit(1)
		}
		runParse(logger, *configPath, flag.Args()[1:])
	case "stats":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: archivist stats <archive.db>")
			os.Exit(1)
		}
		runStats(flag.Arg(1))
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("archivist - email archive parser and classifier")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  parse    Parse an MBOX or OLM archive and report/store results")
	fmt.Println("  stats    Print summary statistics from a previously saved archive.db")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func runParse(logger *slog.Logger, configPath string, args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	dbPath := fs.String("db", "", "optional SQLite path to persist results")
	reportPath := fs.String("report", "", "optional HTML report output path")
	contactsPath := fs.String("export-contacts", "", "optional vCard (.vcf) path to export rolled-up contacts")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: archivist parse [-db out.db] [-report out.html] [-export-contacts contacts.vcf] <archive-file>")
		os.Exit(1)
	}
	archivePath := fs.Arg(0)

	cfg := config.Default()
	if cfgPath, err := config.FindConfig(configPath); err == nil {
		if loaded, err := config.Load(cfgPath); err == nil {
			cfg = loaded
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	if level, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	opts := archive.Options{
		Logger:               logger,
		DetectAccounts:       cfg.Detectors.Accounts,
		DetectPurchases:      cfg.Detectors.Purchases,
		DetectSubscriptions:  cfg.Detectors.Subscriptions,
		DetectNewsletters:    cfg.Detectors.Newsletters,
		ExtractContacts:      cfg.Reader.ExtractContacts,
		MaxMessageBytes:      cfg.Reader.MaxMessageBytes,
		BinaryGuardThreshold: cfg.Reader.BinaryGuardThreshold,
		Progress: func(ev archive.ProgressEvent) {
			logger.Debug("progress", "stage", ev.Stage, "percent", ev.Progress, "message", ev.Message)
		},
	}

	result, err := archive.ParsePath(context.Background(), archivePath, opts)
	if err != nil {
		logger.Error("parse failed", "error", err)
		os.Exit(1)
	}

	logger.Info("parse complete",
		"format", result.Format,
		"emails", humanize.Comma(int64(result.Stats.EmailCount)),
		"dropped", result.Stats.DroppedRecords,
		"elapsed", fmt.Sprintf("%.2fs", result.Stats.ElapsedSeconds),
	)

	if *dbPath != "" {
		s, err := store.NewStore(*dbPath, logger)
		if err != nil {
			logger.Error("failed to open output database", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		if err := s.SaveResult(result); err != nil {
			logger.Error("failed to save results", "error", err)
			os.Exit(1)
		}
		logger.Info("results saved", "db", *dbPath)
	}

	if *reportPath != "" {
		html, err := report.RenderHTML(result)
		if err != nil {
			logger.Error("failed to render report", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*reportPath, []byte(html), 0644); err != nil {
			logger.Error("failed to write report", "error", err)
			os.Exit(1)
		}
		logger.Info("report written", "path", *reportPath)
	}

	if *contactsPath != "" {
		f, err := os.Create(*contactsPath)
		if err != nil {
			logger.Error("failed to create contacts export file", "error", err)
			os.Exit(1)
		}
		if err := olmcontacts.EncodeVCards(f, result.Contacts); err != nil {
			f.Close()
			logger.Error("failed to export contacts", "error", err)
			os.Exit(1)
		}
		if err := f.Close(); err != nil {
			logger.Error("failed to close contacts export file", "error", err)
			os.Exit(1)
		}
		logger.Info("contacts exported", "path", *contactsPath, "count", len(result.Contacts))
	}

	fmt.Println(report.RenderPlainText(result))
}

func runStats(dbPath string) {
	s, err := store.NewStore(dbPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer s.Close()

	n, err := s.EmailCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("emails: %s\n", humanize.Comma(int64(n)))
}
