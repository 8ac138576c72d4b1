// Command birt-consume parses a bird migration data file and populates a
// MongoDB collection.
//
// Usage:
//
//	birt-consume -type=Taxonomy [-host=localhost] [-database=birt] [-v] taxonomy.csv
//
// Exit status is 0 when the run succeeded (including runs that completed
// with some rows rejected to the invalid-record collection) and non-zero
// when the run aborted before completion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecohealthalliance/birt-consumer/internal/config"
	"github.com/ecohealthalliance/birt-consumer/internal/metrics"
	"github.com/ecohealthalliance/birt-consumer/internal/metrics/prompush"
	"github.com/ecohealthalliance/birt-consumer/internal/pipeline"
	"github.com/ecohealthalliance/birt-consumer/internal/schema"
	"github.com/ecohealthalliance/birt-consumer/internal/storage"
)

// ErrMissingTaxonomy is reported when a checklist import runs before any
// taxonomy data has been loaded.
var ErrMissingTaxonomy = errors.New("taxonomy collection is empty; import the type Taxonomy before Checklist")

func main() {
	var (
		recordType     string
		username       string
		password       string
		database       string
		host           string
		settingsPath   string
		metricsBackend string
		pushgatewayURL string
	)

	flag.StringVar(&recordType, "type", "", "record type to parse (Taxonomy|Checklist|Core)")
	flag.StringVar(&username, "username", "", "username for mongoDB (default: from settings/env)")
	flag.StringVar(&password, "password", "", "password for mongoDB (default: from settings/env)")
	flag.StringVar(&database, "database", "", "database for mongoDB (default: birt)")
	flag.StringVar(&host, "host", "", "hostname for mongoDB (default: localhost)")
	flag.StringVar(&settingsPath, "settings", "", "path to a JSON settings file")
	flag.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend (pushgateway, none)")
	flag.StringVar(&pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: birt-consume -type=<Taxonomy|Checklist|Core> [flags] <infile>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	infile := flag.Arg(0)

	rt, err := schema.ParseRecordType(recordType)
	if err != nil {
		fatalf("%v", err)
	}

	settings, err := config.Load(settingsPath)
	if err != nil {
		fatalf("%v", err)
	}
	if host != "" {
		settings.Mongo.Host = host
	}
	if database != "" {
		settings.Mongo.Database = database
	}
	if username != "" {
		settings.Mongo.Username = username
	}
	if password != "" {
		settings.Mongo.Password = password
	}

	hasError := false
	for _, iss := range config.Validate(settings) {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid")
	}

	initMetrics(metricsBackend, pushgatewayURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Connect(ctx, storage.Config{
		Host:     settings.Mongo.Host,
		Database: settings.Mongo.Database,
		Username: settings.Mongo.Username,
		Password: settings.Mongo.Password,
	})
	if err != nil {
		fatalf("%v", err)
	}
	defer store.Close(context.Background())

	if settings.DropIndexes {
		if err := store.DropIndexes(ctx, settings.Collections.Nodes, settings.Collections.Paths); err != nil {
			fatalf("%v", err)
		}
		log.Printf("dropped indexes; rebuild with birt-ensure-index after the import")
	}

	// A checklist import is meaningless without the taxonomy it refers to.
	if rt == schema.Checklist {
		n, err := store.Count(ctx, settings.Collections.Nodes)
		if err != nil {
			fatalf("%v", err)
		}
		if n == 0 {
			fatalf("%v", ErrMissingTaxonomy)
		}
	}

	p := &pipeline.Pipeline{
		Path:     infile,
		Type:     rt,
		Settings: settings,
		Sink:     store,
		Verbose:  *verbose || settings.Debug,
	}

	sum, err := p.Run(ctx)
	fmt.Println(sum)
	if err != nil {
		fatalf("%v", err)
	}
}

func initMetrics(backendName, gwURL string) {
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("birt_consume", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		metrics.SetBackend(b)
	case "", "none":
	default:
		log.Printf("metrics: unknown backend %q; using nop", backendName)
	}
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
