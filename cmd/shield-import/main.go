// Package main bulk-loads MITRE technique fixtures into MongoDB, one
// extraction platform at a time.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mitre-shield/internal/config"
	"mitre-shield/internal/logging"
	"mitre-shield/internal/schema"
	"mitre-shield/internal/storage"
)

var version = "dev"

// defaultPlatforms are the fixture partitions loaded when no -platform
// flag is given. The "ai" partition is curated by hand and is only
// replaced when asked for explicitly.
var defaultPlatforms = []string{
	"windows", "linux", "macos", "cloud", "containers", "officesuite",
}

type platformResult struct {
	Platform string
	Stats    storage.ReplaceStats
	Err      error
}

func main() {
	var (
		showVersion bool
		platformArg string
		dataDir     string
		delay       time.Duration
	)
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.StringVar(&platformArg, "platform", "", "Comma-separated platforms to import (default: all standard platforms)")
	flag.StringVar(&dataDir, "data-dir", ".", "Directory holding mitreshire_<platform>_techniques.json fixtures")
	flag.DurationVar(&delay, "delay", 30*time.Second, "Pause between platform imports")
	flag.Parse()

	if showVersion {
		fmt.Printf("shield-import %s\n", version)
		os.Exit(0)
	}

	platforms := defaultPlatforms
	if platformArg != "" {
		platforms = nil
		for _, p := range strings.Split(platformArg, ",") {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				platforms = append(platforms, p)
			}
		}
	}
	if len(platforms) == 0 {
		fmt.Fprintln(os.Stderr, "no platforms to import")
		os.Exit(1)
	}

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017/mitre-shield"
	}

	logger := logging.Setup(config.LoggingConfig{Level: os.Getenv("SHIELD_LOG_LEVEL"), Format: "text"})
	logger.Info("connecting to MongoDB", "uri", logging.MaskMongoURI(uri))

	ctx := context.Background()
	client, err := storage.NewClient(ctx, config.MongoConfig{
		URI:            uri,
		Database:       databaseFromURI(uri),
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   45 * time.Second,
	})
	if err != nil {
		logger.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer client.Close(ctx)

	results := make([]platformResult, 0, len(platforms))
	for i, platform := range platforms {
		if i > 0 && delay > 0 {
			logger.Info("pausing before next platform", "delay", delay.String())
			time.Sleep(delay)
		}
		result := importPlatform(ctx, client.Techniques(), dataDir, platform)
		if result.Err != nil {
			logger.Error("platform import failed", "platform", platform, "error", result.Err)
		} else {
			logger.Info("platform import complete",
				"platform", platform,
				"deleted", result.Stats.Deleted,
				"inserted", result.Stats.Inserted)
		}
		results = append(results, result)
	}

	printSummary(results)

	total, err := client.Techniques().Count(ctx)
	if err == nil {
		fmt.Printf("Techniques now in database: %d\n", total)
	}

	for _, r := range results {
		if r.Err != nil {
			os.Exit(1)
		}
	}
}

func importPlatform(ctx context.Context, store storage.TechniqueStore, dataDir, platform string) platformResult {
	result := platformResult{Platform: platform}

	filename := filepath.Join(dataDir, fmt.Sprintf("mitreshire_%s_techniques.json", platform))
	data, err := os.ReadFile(filename)
	if err != nil {
		result.Err = fmt.Errorf("failed to read fixture: %w", err)
		return result
	}

	var techniques []schema.MitreTechnique
	if err := json.Unmarshal(data, &techniques); err != nil {
		result.Err = fmt.Errorf("failed to parse %s: %w", filename, err)
		return result
	}

	// The cloud extraction covers four provider platforms in one file.
	if platform == "cloud" {
		for i := range techniques {
			techniques[i].Platforms = []string{"AWS", "Azure", "GCP", "Oracle"}
		}
	}

	stats, err := store.ReplacePlatform(ctx, platform, techniques)
	if err != nil {
		result.Err = err
		return result
	}
	result.Stats = stats
	return result
}

func printSummary(results []platformResult) {
	fmt.Println("\nImport summary")
	fmt.Println("==============")
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  FAIL  %-12s  %v\n", r.Platform, r.Err)
			failed++
			continue
		}
		fmt.Printf("  OK    %-12s  deleted=%d inserted=%d\n",
			r.Platform, r.Stats.Deleted, r.Stats.Inserted)
	}
	fmt.Printf("\n%d platform(s) processed, %d failed\n", len(results), failed)
}

// databaseFromURI pulls the database name out of a MongoDB connection
// string, defaulting to mitre-shield when the URI carries none.
func databaseFromURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "mitre-shield"
	}
	if db := strings.TrimPrefix(parsed.Path, "/"); db != "" {
		return db
	}
	return "mitre-shield"
}
