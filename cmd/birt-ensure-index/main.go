// Command birt-ensure-index sets the MongoDB indexes for the bird taxonomy
// and migration collections.
//
// The operation is idempotent and safe to repeat. It is independent of the
// ingestion pipeline and meant to be run after data loads; running it
// against empty collections creates empty (but valid) indexes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ecohealthalliance/birt-consumer/internal/config"
	"github.com/ecohealthalliance/birt-consumer/internal/storage"
)

func main() {
	var (
		username     string
		password     string
		database     string
		host         string
		settingsPath string
	)

	flag.StringVar(&username, "username", "", "username for mongoDB (default: from settings/env)")
	flag.StringVar(&password, "password", "", "password for mongoDB (default: from settings/env)")
	flag.StringVar(&database, "database", "", "database for mongoDB (default: birt)")
	flag.StringVar(&host, "host", "", "hostname for mongoDB (default: localhost)")
	flag.StringVar(&settingsPath, "settings", "", "path to a JSON settings file")
	yes := flag.Bool("yes", false, "apply without confirmation")
	flag.Parse()

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

	if !*yes && !confirm("Building indexes will lock the database. Are you sure?") {
		fmt.Println("aborted")
		return
	}

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

	if err := store.EnsureIndexes(ctx, settings.Collections.Nodes, settings.Collections.Paths); err != nil {
		fatalf("%v", err)
	}
	log.Printf("indexes have been applied: collections=%s,%s",
		settings.Collections.Nodes, settings.Collections.Paths)
}

// confirm asks a yes/no question on stdin, defaulting to no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
