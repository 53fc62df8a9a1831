// Package main implements pixlift-upload, an operator CLI for one-off
// uploads and image inspection without running the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pixlift/pixlift/internal/config"
	"github.com/pixlift/pixlift/internal/imageproc"
	"github.com/pixlift/pixlift/internal/keys"
	"github.com/pixlift/pixlift/internal/ledger"
	"github.com/pixlift/pixlift/internal/observability"
	"github.com/pixlift/pixlift/internal/service"
	"github.com/pixlift/pixlift/internal/storage"
	"github.com/pixlift/pixlift/pkg/api"
)

func main() {
	var (
		configFile  string
		bucket      string
		region      string
		prefix      string
		quality     int
		noOptimize  bool
		storageType string
		storagePath string
		showInfo    bool
		jsonOut     bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&bucket, "bucket", "", "S3 bucket name")
	flag.StringVar(&region, "region", "", "AWS region")
	flag.StringVar(&prefix, "prefix", "", "Key prefix (folder) for uploaded objects")
	flag.IntVar(&quality, "quality", 0, "Compression quality 1-100 (default 80)")
	flag.BoolVar(&noOptimize, "no-optimize", false, "Upload the original bytes without optimization")
	flag.StringVar(&storageType, "storage", "", "Storage type: local, s3")
	flag.StringVar(&storagePath, "storage-path", "", "Local storage path (for -storage local)")
	flag.BoolVar(&showInfo, "info", false, "Inspect the images instead of uploading")
	flag.BoolVar(&jsonOut, "json", false, "Emit results as JSON")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pixlift-upload - upload images to object storage\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pixlift-upload [options] FILE [FILE...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pixlift-upload -bucket my-images photo.jpg\n")
		fmt.Fprintf(os.Stderr, "  pixlift-upload -bucket my-images -prefix events/2026 *.png\n")
		fmt.Fprintf(os.Stderr, "  pixlift-upload -info photo.jpg\n")
	}

	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if showInfo {
		os.Exit(inspectFiles(files, jsonOut))
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if bucket != "" {
		cfg.Storage.S3.Bucket = bucket
	}
	if region != "" {
		cfg.Storage.S3.Region = region
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	// A bucket on the command line implies S3 unless storage was forced.
	if storageType == "" && bucket != "" {
		cfg.Storage.Type = "s3"
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Pretty)
	ctx := context.Background()

	var store storage.ObjectStore
	switch cfg.Storage.Type {
	case "local":
		if err := cfg.EnsureDirectories(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create directories: %v\n", err)
			os.Exit(1)
		}
		store, err = storage.NewLocalStore(cfg.Storage.Path, cfg.Storage.S3.Bucket)
	case "s3":
		store, err = storage.NewS3Store(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	var led ledger.Ledger
	if cfg.Ledger.Enabled {
		if err := cfg.EnsureDirectories(); err == nil {
			if l, err := ledger.Open(cfg.Ledger.Path); err == nil {
				led = l
				defer l.Close()
			}
		}
	}

	optimizer := imageproc.NewOptimizer(
		imageproc.WithBounds(cfg.Optimize.MaxWidth, cfg.Optimize.MaxHeight))
	svc := service.New(store, optimizer, keys.NewGenerator(),
		observability.NewUploadStats(), led, log,
		service.WithDefaultQuality(cfg.Optimize.Quality))

	optimize := !noOptimize

	if len(files) == 1 {
		resp := svc.Upload(ctx, api.UploadRequest{
			FilePath:     files[0],
			Optimize:     &optimize,
			Quality:      quality,
			FolderPrefix: prefix,
		})
		printResult(resp, jsonOut)
		if !resp.Success {
			os.Exit(1)
		}
		return
	}

	resp := svc.BatchUpload(ctx, api.BatchUploadRequest{
		FilePaths:    files,
		Optimize:     &optimize,
		Quality:      quality,
		FolderPrefix: prefix,
	})
	printResult(resp, jsonOut)
	if !resp.Success {
		os.Exit(1)
	}
}

func inspectFiles(files []string, jsonOut bool) int {
	exit := 0
	for _, path := range files {
		info, err := imageproc.Inspect(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exit = 1
			continue
		}
		if jsonOut {
			printResult(info, true)
			continue
		}
		alpha := ""
		if info.HasAlpha {
			alpha = " alpha"
		}
		fmt.Printf("%s: %s %dx%d %d bytes%s\n",
			path, info.Format, info.Width, info.Height, info.SizeBytes, alpha)
	}
	return exit
}

func printResult(v any, jsonOut bool) {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}

	switch r := v.(type) {
	case api.UploadResponse:
		if r.Success {
			fmt.Printf("uploaded %s (%d bytes, %s)\n", r.URL, r.Size, r.ContentType)
		} else {
			fmt.Fprintf(os.Stderr, "upload failed: %s\n", r.Error)
		}
	case api.BatchUploadResponse:
		for _, fr := range r.Results {
			if fr.Success {
				fmt.Printf("uploaded %s -> %s\n", fr.FilePath, fr.URL)
			} else {
				fmt.Fprintf(os.Stderr, "failed   %s: %s\n", fr.FilePath, fr.Error)
			}
		}
		fmt.Printf("%d/%d uploaded\n", r.SuccessfulUploads, r.TotalFiles)
		if s := r.OptimizationStats; s != nil && s.SpaceSaved > 0 {
			fmt.Printf("saved %d bytes (%.2f%%)\n", s.SpaceSaved, s.CompressionRatio)
		}
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
	}
}
