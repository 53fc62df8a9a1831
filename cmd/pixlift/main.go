// Package main implements the pixlift server binary: an HTTP service
// exposing image upload tools backed by S3 or local object storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pixlift/pixlift/internal/app"
	"github.com/pixlift/pixlift/internal/config"
	"github.com/pixlift/pixlift/internal/observability"
	"github.com/pixlift/pixlift/internal/service"
)

var commit = "unknown"

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		storageType string
		bucket      string
		region      string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for local state")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&storageType, "storage", "", "Storage type: local, s3")
	flag.StringVar(&bucket, "bucket", "", "S3 bucket name")
	flag.StringVar(&region, "region", "", "AWS region")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pixlift - image upload service for S3\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pixlift [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pixlift --storage s3 --bucket my-images --region ap-northeast-2\n")
		fmt.Fprintf(os.Stderr, "  pixlift --config /etc/pixlift/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PIXLIFT_HTTP_ADDR       HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  PIXLIFT_STORAGE_TYPE    Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  S3_BUCKET_NAME          S3 bucket name\n")
		fmt.Fprintf(os.Stderr, "  AWS_REGION              AWS region\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("pixlift version %s (commit: %s)\n", service.Version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override file and environment.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if bucket != "" {
		cfg.Storage.S3.Bucket = bucket
	}
	if region != "" {
		cfg.Storage.S3.Region = region
	}

	log := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Pretty)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("pixlift exited with error")
	}
}
