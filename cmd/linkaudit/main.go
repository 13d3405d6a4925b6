package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"linkaudit/pkg/config"
	"linkaudit/pkg/crawler"
	"linkaudit/pkg/fetch"
	"linkaudit/pkg/models"
	"linkaudit/pkg/report"
	"linkaudit/pkg/urlutil"
	"linkaudit/pkg/whois"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	settingsFlag := flag.String("config", "linkaudit.yaml", "Path to YAML settings file")
	urlFlag := flag.String("url", "", "Seed URL to audit (required)")
	depthFlag := flag.Int("depth", 0, "Override max crawl depth")
	delayFlag := flag.Duration("delay", 0, "Override per-domain politeness delay (e.g. 500ms)")
	poolFlag := flag.Int("pool", 0, "Override worker pool size")
	outputFlag := flag.String("output", "", "Path for the xlsx report (default <domain>_audit.xlsx)")
	logLevelFlag := flag.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	timeoutFlag := flag.Duration("timeout", 0, "Override global crawl timeout (0 = none)")
	noWhoisFlag := flag.Bool("no-whois", false, "Skip WHOIS enrichment in the report")
	keepStateFlag := flag.Bool("keep-state", false, "Keep the crawl state databases after the run")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", *logLevelFlag, err)
	} else {
		log.SetLevel(level)
	}

	if *urlFlag == "" {
		log.Fatal("Error: -url flag is required.")
	}
	if !urlutil.IsValid(*urlFlag) {
		log.Fatalf("Error: %q is not a valid http(s) URL.", *urlFlag)
	}

	settings, err := config.Load(*settingsFlag)
	if err != nil {
		log.Fatalf("Loading settings: %v", err)
	}
	if *depthFlag > 0 {
		settings.MaxDepth = *depthFlag
	}
	if *delayFlag > 0 {
		settings.CrawlDelay = *delayFlag
	}
	if *poolFlag > 0 {
		settings.PoolSize = *poolFlag
	}
	if *timeoutFlag > 0 {
		settings.GlobalTimeout = *timeoutFlag
	}

	warnings, err := settings.Validate()
	if err != nil {
		log.Fatalf("Settings error: %v", err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	if !*noWhoisFlag {
		if err := settings.RequireWhoisKey(); err != nil {
			log.Fatalf("Settings error: %v (or pass -no-whois)", err)
		}
	}

	baseDomain := urlutil.Domain(*urlFlag)
	outputPath := *outputFlag
	if outputPath == "" {
		outputPath = fmt.Sprintf("%s_audit.xlsx", baseDomain)
	}

	log.Infof("Auditing %s (depth %d, %d workers, %v delay)",
		*urlFlag, settings.MaxDepth, settings.PoolSize, settings.CrawlDelay)

	ctrl := crawler.New(settings, log, func(line string) {
		fmt.Println(line)
	})

	if err := ctrl.Start(*urlFlag); err != nil {
		log.Fatalf("Starting crawl: %v", err)
	}

	// First signal cancels gracefully (partial results still exported),
	// second forces exit.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Cancelling crawl, partial results will be exported...", sig)
		go ctrl.Cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	if err := ctrl.Wait(context.Background()); err != nil {
		log.Fatalf("Waiting for crawl: %v", err)
	}

	results, err := ctrl.Results()
	if err != nil {
		log.Fatalf("Reading results: %v", err)
	}
	log.Infof("Crawl finished in state %q with %d results.", ctrl.State(), len(results))

	if err := exportReport(results, baseDomain, outputPath, settings, *noWhoisFlag, log); err != nil {
		log.Errorf("Exporting report: %v", err)
	}

	if !*keepStateFlag {
		if err := ctrl.Cleanup(); err != nil {
			log.Warnf("Cleaning up crawl state: %v", err)
		}
	}

	if ctrl.State() == models.StateCancelled {
		os.Exit(1)
	}
}

// exportReport enriches results with WHOIS data (unless disabled) and writes
// the xlsx artifact.
func exportReport(results []models.CrawlResult, baseDomain, outputPath string, settings *config.Settings, noWhois bool, log *logrus.Logger) error {
	if len(results) == 0 {
		log.Warn("No results to export, skipping report.")
		return nil
	}

	var resolver whois.Resolver = noopResolver{}
	if !noWhois {
		client := fetch.NewClient(settings.HTTPClientSettings, log)
		resolver = whois.NewCache(whois.NewHTTPResolver(client, settings.WhoisAPIKey, logrus.NewEntry(log)))
	}

	rows := report.Build(context.Background(), results, baseDomain, resolver)

	broken := 0
	for _, r := range rows {
		if r.IsError {
			broken++
		}
	}

	if err := report.WriteXLSX(outputPath, rows); err != nil {
		return err
	}
	log.Infof("Report written to %s (%d rows, %d broken links).", outputPath, len(rows), broken)
	return nil
}

// noopResolver stands in when WHOIS enrichment is disabled.
type noopResolver struct{}

func (noopResolver) Resolve(ctx context.Context, domain string) models.WhoisRecord {
	return models.WhoisRecord{Owner: "", Status: ""}
}
