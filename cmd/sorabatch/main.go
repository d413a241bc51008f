// Command sorabatch runs spreadsheet-driven bulk content generation against
// the Sora web UI. Tasks come from an xlsx workbook; each worker slot drives
// its own persistent browser profile, and results are written back to the
// sheet as they complete.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
	"github.com/theanhybdz2k4/new-sora/pkg/browser/adapters/chromedriver"
	"github.com/theanhybdz2k4/new-sora/pkg/bus"
	"github.com/theanhybdz2k4/new-sora/pkg/config"
	"github.com/theanhybdz2k4/new-sora/pkg/logging"
	"github.com/theanhybdz2k4/new-sora/pkg/pool"
	"github.com/theanhybdz2k4/new-sora/pkg/sheet"
	"github.com/theanhybdz2k4/new-sora/pkg/sora"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "template":
		os.Exit(cmdTemplate(os.Args[2:]))
	case "version", "--version", "-v":
		fmt.Printf("sorabatch %s (%s, built %s)\n", version, commit, buildDate)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `sorabatch - batch content generation through the Sora web UI

Usage:
  sorabatch template [flags]   create a task workbook template
  sorabatch run [flags]        process pending tasks from the workbook
  sorabatch version            print version information

Run "sorabatch <command> -h" for command flags.
`)
}

func cmdTemplate(args []string) int {
	fs := flag.NewFlagSet("template", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	sheetPath := fs.String("sheet", "", "workbook path (default: configured sheet_path)")
	fs.Parse(args)

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	path := *sheetPath
	if path == "" {
		path = settings.SheetPath
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "refusing to overwrite existing workbook %s\n", path)
		return 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		return 1
	}
	if err := sheet.CreateTemplate(path); err != nil {
		fmt.Fprintf(os.Stderr, "create template: %v\n", err)
		return 1
	}
	fmt.Printf("created %s\n", path)
	return 0
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	sheetPath := fs.String("sheet", "", "workbook path (default: configured sheet_path)")
	concurrency := fs.Int("concurrency", 0, "worker slots (default: configured concurrency)")
	headless := fs.Bool("headless", false, "run browsers headless (logins must already be saved)")
	includeCompleted := fs.Bool("include-completed", false, "re-run rows already marked completed")
	natsURL := fs.String("nats", "", "NATS URL for the event bridge (default: configured nats_url)")
	fs.Parse(args)

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if *sheetPath != "" {
		settings.SheetPath = *sheetPath
	}
	if *concurrency > 0 {
		settings.Concurrency = *concurrency
	}
	if *headless {
		settings.Headless = true
	}
	if *natsURL != "" {
		settings.NATSURL = *natsURL
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}
	if err := settings.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "prepare directories: %v\n", err)
		return 1
	}

	handler, err := sheet.Open(settings.SheetPath, settings.Defaults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open workbook: %v\n", err)
		fmt.Fprintln(os.Stderr, `hint: "sorabatch template" creates a fresh workbook`)
		return 1
	}
	defer handler.Close()

	rows, err := handler.LoadTasks(*includeCompleted)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load tasks: %v\n", err)
		return 1
	}
	if len(rows) == 0 {
		fmt.Println("no pending tasks")
		return 0
	}

	runID := uuid.NewString()
	logger, err := logging.NewLogger(settings.LogDir, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		return 1
	}
	defer logger.Close()

	ctx := context.Background()
	driverCfg := chromedriver.DefaultConfig()
	driverCfg.ChromedriverPath = settings.ChromedriverPath
	runtime, err := chromedriver.NewRuntime(ctx, driverCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start chromedriver: %v\n", err)
		return 1
	}
	manager := browser.NewManager(runtime)
	defer manager.Close()

	factory := sora.NewFactory(manager, settings, logger)
	pm := pool.New(factory, pool.Options{
		RunID:             runID,
		LoginTimeout:      settings.Timeouts.Login,
		LoginPollInterval: settings.Timeouts.LoginPoll,
		Logger:            logger,
	})

	var bridge *pool.Bridge
	if settings.NATSURL != "" {
		nb, err := bus.NewNATSBus(bus.Config{URL: settings.NATSURL, Name: "sorabatch"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect NATS: %v\n", err)
			return 1
		}
		defer nb.Close()
		bridge = pool.NewBridge(nb, pm)
		if err := bridge.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "start event bridge: %v\n", err)
			return 1
		}
		defer bridge.Close()
		fmt.Printf("event bridge on sora.pool.%s.>\n", runID)
	}

	// SIGINT asks the pool to wind down; in-flight tasks finish first.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nstopping: letting in-flight tasks finish")
		pm.Stop()
	}()

	tasks := make([]pool.Task, len(rows))
	for i, row := range rows {
		tasks[i] = pool.Task{
			ID:          row.ID,
			Prompt:      row.Prompt,
			ImagePath:   row.ImagePath,
			Kind:        row.Kind,
			AspectRatio: row.AspectRatio,
			Duration:    row.Duration,
			Resolution:  row.Resolution,
			Variations:  row.Variations,
			OutputPath:  row.OutputPath,
		}
	}
	fmt.Printf("run %s: %d tasks across %d slots\n", runID, len(tasks), settings.Concurrency)

	var results []pool.TaskResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = pm.Run(gctx, tasks, settings.Concurrency)
		return err
	})
	g.Go(func() error {
		for ev := range pm.Events() {
			if bridge != nil {
				bridge.Forward(gctx, ev)
			}
			handleEvent(handler, ev)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		return 1
	}

	if err := handler.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "save workbook: %v\n", err)
		return 1
	}

	succeeded := 0
	for _, res := range results {
		if res.Succeeded {
			succeeded++
		}
	}
	fmt.Printf("done: %d succeeded, %d failed, %d not attempted\n",
		succeeded, len(results)-succeeded, len(tasks)-len(results))
	if succeeded < len(results) {
		return 1
	}
	return 0
}

// handleEvent prints progress and writes terminal task outcomes back to the
// workbook. The event consumer is the only goroutine touching the workbook
// during a run.
func handleEvent(handler *sheet.Handler, ev pool.Event) {
	switch ev.Kind {
	case pool.EventTaskStarted:
		fmt.Printf("[slot %d] row %d started\n", ev.Slot, ev.TaskID)
	case pool.EventLoginRequired:
		fmt.Printf("[slot %d] login required: complete it in the browser window\n", ev.Slot)
	case pool.EventTaskCompleted:
		if ev.Result == nil {
			return
		}
		status := "failed"
		record := ev.Result.Message
		if ev.Result.Succeeded {
			status = "completed"
			record = ev.Result.ProducedPath
		}
		fmt.Printf("[slot %d] row %d %s: %s\n", ev.Slot, ev.TaskID, status, record)
		if err := handler.RecordResult(ev.TaskID, status, record); err != nil {
			fmt.Fprintf(os.Stderr, "record row %d: %v\n", ev.TaskID, err)
		}
		if ev.Result.Succeeded && ev.Result.ProducedPath != "" {
			if err := handler.SetOutputPath(ev.TaskID, ev.Result.ProducedPath); err != nil {
				fmt.Fprintf(os.Stderr, "record output path row %d: %v\n", ev.TaskID, err)
			}
		}
	case pool.EventPoolFinished:
		fmt.Println("all workers finished")
	}
}
