package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"skinnerbox/internal/interrupt"
	"skinnerbox/internal/storage"
	boxapi "skinnerbox/pkg/skinnerbox"
)

const defaultDBPath = "skinnerbox.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "sessions":
		return runSessions(ctx, args[1:])
	case "trials":
		return runTrials(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func addStoreFlags(fs *flag.FlagSet) (storeKind, dbPath *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", defaultDBPath, "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string) (*boxapi.Client, error) {
	return boxapi.New(boxapi.Options{StoreKind: storeKind, DBPath: dbPath})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *storeKind == "sqlite" {
		if err := os.Remove(*dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	paradigmPath := fs.String("paradigm", "", "paradigm yaml file")
	metricsAddr := fs.String("metrics-addr", "", "prometheus listen address, empty disables")
	verbose := fs.Bool("v", false, "log trial progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *paradigmPath == "" {
		return usageError("run requires -paradigm")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "skinnerbox: ", log.LstdFlags|log.Lmicroseconds)
	}

	scope := interrupt.Open()
	defer scope.Close()

	summary, err := client.Run(ctx, boxapi.RunRequest{
		ParadigmPath: *paradigmPath,
		MetricsAddr:  *metricsAddr,
		Logger:       logger,
		Scope:        scope,
	})
	if err != nil {
		return err
	}

	fmt.Printf("session=%s subject=%s completed=%d/%d interrupted=%v\n",
		summary.SessionID, summary.SubjectID, summary.Completed, summary.NTrials, summary.Interrupted)
	for name, count := range summary.TypeCounts {
		fmt.Printf("  %s: %d\n", name, count)
	}
	return nil
}

func runSessions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "maximum sessions to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sessions, err := client.Sessions(ctx, boxapi.SessionsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	return printJSON(sessions)
}

func runTrials(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trials", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	sessionID := fs.String("session", "", "session id")
	latest := fs.Bool("latest", false, "use the most recent session")
	limit := fs.Int("limit", 0, "maximum trials to list, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	trials, err := client.Trials(ctx, boxapi.TrialsRequest{
		SessionID: *sessionID,
		Latest:    *latest,
		Limit:     *limit,
	})
	if err != nil {
		return err
	}
	return printJSON(trials)
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	sessionID := fs.String("session", "", "session id")
	latest := fs.Bool("latest", false, "use the most recent session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, err := client.Report(ctx, boxapi.ReportRequest{
		SessionID: *sessionID,
		Latest:    *latest,
	})
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	sessionID := fs.String("session", "", "session id")
	latest := fs.Bool("latest", false, "export the most recent session")
	all := fs.Bool("all", false, "export every session")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, boxapi.ExportRequest{
		SessionID: *sessionID,
		Latest:    *latest,
		All:       *all,
		OutDir:    *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported %d session(s) to %s\n", len(summary.Sessions), summary.Directory)
	return nil
}

func printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

func usageError(message string) error {
	return fmt.Errorf(`%s

usage: skinnerboxctl <command> [flags]

commands:
  init      create the store
  reset     wipe and recreate the store
  run       run a session from a paradigm file
  sessions  list recorded sessions
  trials    list a session's trials
  report    summarize a session
  export    write session JSON documents`, message)
}
