// cmd/navlog/main.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// navlog imports a navlog document and applies it to a simulated FMS,
// printing the resulting flight plan and avionics state.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hdsdk/navlog/aviation"
	"github.com/hdsdk/navlog/fms"
	"github.com/hdsdk/navlog/log"
	"github.com/hdsdk/navlog/navlog"
	"github.com/hdsdk/navlog/pipeline"

	"github.com/apenwarr/fixconsole"
	"github.com/goforj/godump"
)

var (
	configPath  = flag.String("config", "", "path to config file (default: user config dir)")
	saveConfig  = flag.Bool("saveconfig", false, "write the effective config to the config file and exit")
	logLevel    = flag.String("loglevel", "", "logging level: debug, info, warn, error")
	logDir      = flag.String("logdir", "", "log file directory")
	navDB       = flag.String("navdb", "", "CIFP source: faa, an http(s), gs:// or s3:// URL, or a local file")
	cacheDir    = flag.String("cachedir", "", "navigation database cache directory")
	noCache     = flag.Bool("nocache", false, "always read the CIFP source rather than the cache")
	navlogFile  = flag.String("navlog", "", "navlog JSON file to apply (\"-\" for stdin)")
	dumpNavlog  = flag.Bool("dump", false, "dump the imported navlog")
	showRoutes  = flag.String("routes", "", "display the runways and SIDs known for the given airport")
	noSID       = flag.Bool("nosid", false, "don't select the navlog's departure procedure")
	timeout     = flag.Duration("timeout", 0, "maximum time to apply the navlog (default from config)")
	hostLatency = flag.Duration("latency", 0, "simulated FMS per-call latency")
)

func main() {
	flag.Parse()

	if err := fixconsole.FixConsoleIfNeeded(); err != nil {
		fmt.Printf("FixConsole: %v\n", err)
	}

	fn := *configPath
	if fn == "" {
		fn = configFilePath(nil)
	}
	config, configErr := LoadOrMakeDefaultConfig(fn, nil)
	applyFlags(config)

	lg := log.New(config.LogLevel, config.LogDir)
	defer lg.CatchAndReportCrash()

	if configErr != nil {
		lg.Errorf("Configuration error: %v", configErr)
		fmt.Fprintf(os.Stderr, "%v: using default configuration\n", configErr)
	}

	if *saveConfig {
		if err := config.Save(fn, lg); err != nil {
			lg.Errorf("%s: %v", fn, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := aviation.LoadDatabase(ctx, config.DatabaseOptions(), lg)
	if err != nil {
		lg.Errorf("%s: unable to load navigation database: %v", config.NavDBSource, err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.NavDBSource, err)
		os.Exit(1)
	}

	if *showRoutes != "" {
		ap, err := db.AirportByIdent(ctx, *showRoutes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *showRoutes, err)
			os.Exit(1)
		}
		godump.Dump(ap)
		return
	}

	imp := &navlog.JSONImporter{Path: *navlogFile}
	if *navlogFile == "-" {
		imp = &navlog.JSONImporter{Reader: os.Stdin}
	} else if *navlogFile == "" && flag.NArg() > 0 {
		imp.Path = flag.Arg(0)
	}
	nl, err := navlog.Import(ctx, imp, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *dumpNavlog {
		godump.Dump(nl)
	}

	host := fms.NewSimHost(lg)
	host.Latency = *hostLatency
	session := pipeline.NewSession(host, db, config.PipelineOptions(lg))

	actx := ctx
	if d := time.Duration(config.ApplyTimeout); d > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res, err := session.Apply(actx, nl)
	if res != nil {
		printResult(res)
	}
	for _, msg := range host.UserErrors() {
		fmt.Printf("FMS: %s\n", msg)
	}
	fmt.Print(host.String())

	if err != nil {
		var se *pipeline.StepError
		if errors.As(err, &se) {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", se.Step, se.Err)
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}
}

// applyFlags overrides config with the command-line options that were
// given.
func applyFlags(config *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "loglevel":
			config.LogLevel = *logLevel
		case "logdir":
			config.LogDir = *logDir
		case "navdb":
			config.NavDBSource = *navDB
		case "cachedir":
			config.CacheDir = *cacheDir
		case "nocache":
			config.NoCache = *noCache
		case "nosid":
			config.WithSID = !*noSID
		case "timeout":
			config.ApplyTimeout = Duration(*timeout)
		}
	})
}

func printResult(res *pipeline.Result) {
	fmt.Printf("run %s: %s in %s\n", res.RunID, res.State, res.Elapsed.Round(time.Millisecond))
	for _, s := range res.Steps {
		fmt.Printf("  %s\n", s)
	}
	if res.State == pipeline.Complete || res.BlockFuel > 0 {
		a := res.Allocation
		fmt.Printf("fuel: block %.0f lb (L %.0f C %.0f R %.0f) reserve %.0f lb, ZFW %.0f lb\n",
			res.BlockFuel, a.Left, a.Center, a.Right, res.Reserve, res.ZeroFuelWeight)
	}
	fmt.Printf("%d fixes inserted\n", res.Inserted)
}
