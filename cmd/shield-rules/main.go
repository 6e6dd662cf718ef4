// Package main provides a CLI tool for validating and importing MITRE
// Shield detection rule files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mitre-shield/internal/importer"
	"mitre-shield/internal/schema"
	"mitre-shield/internal/validation"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidateCmd(os.Args[2:])
	case "list":
		runListCmd(os.Args[2:])
	case "import":
		runImportCmd(os.Args[2:])
	case "template":
		runTemplateCmd(os.Args[2:])
	case "-version", "--version", "-v":
		fmt.Printf("shield-rules %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: shield-rules <command> [flags] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  validate  Validate CSV/XLSX rule files or directories\n")
	fmt.Fprintf(os.Stderr, "  list      List rules found in files or directories\n")
	fmt.Fprintf(os.Stderr, "  import    Import a rule file into a running server\n")
	fmt.Fprintf(os.Stderr, "  template  Write the CSV import template\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	fmt.Fprintf(os.Stderr, "  -version  Show version and exit\n")
}

func newPipeline() (*importer.Extractor, *validation.Validator) {
	vocab := schema.DefaultVocabulary()
	if extra := os.Getenv("SHIELD_EXTRA_PLATFORMS"); extra != "" {
		for _, p := range strings.Split(extra, ",") {
			vocab = vocab.WithExtraPlatforms(strings.TrimSpace(p))
		}
	}
	return importer.NewExtractor(vocab), validation.NewWithVocabulary(vocab)
}

func runValidateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show every warning and error per rule")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one path is required\n")
		fmt.Fprintf(os.Stderr, "Usage: shield-rules validate [--verbose] <path> [<path>...]\n")
		os.Exit(1)
	}

	os.Exit(runValidate(paths, *verbose))
}

func runValidate(paths []string, verbose bool) int {
	extractor, validator := newPipeline()
	var totalFiles, validFiles, invalidFiles int

	for _, path := range collectRuleFiles(paths) {
		totalFiles++
		result, err := parseFile(extractor, validator, path)
		if err != nil {
			fmt.Printf("  FAIL  %s: %v\n", path, err)
			invalidFiles++
			continue
		}

		if result.Summary.InvalidCount > 0 {
			fmt.Printf("  FAIL  %s (%d of %d rules invalid)\n",
				path, result.Summary.InvalidCount, result.Summary.Total)
			invalidFiles++
		} else {
			fmt.Printf("  OK    %s (%d rule(s), %d with warnings)\n",
				path, result.Summary.Total, result.Summary.WarningCount)
			validFiles++
		}

		if verbose {
			printFindings(result)
		}
		fmt.Println()
		fmt.Print(result.Report())
	}

	fmt.Printf("\nResults: %d files checked, %d valid, %d invalid\n", totalFiles, validFiles, invalidFiles)
	if invalidFiles > 0 {
		return 1
	}
	return 0
}

func printFindings(result *validation.BatchResult) {
	for _, o := range result.Invalid {
		for _, msg := range o.ErrorMessages() {
			fmt.Printf("        ERROR  [%s] %s\n", o.Row.RuleID, msg)
		}
		for _, msg := range o.WarningMessages() {
			fmt.Printf("        WARN   [%s] %s\n", o.Row.RuleID, msg)
		}
	}
	for _, o := range result.Warned {
		for _, msg := range o.WarningMessages() {
			fmt.Printf("        WARN   [%s] %s\n", o.Row.RuleID, msg)
		}
	}
}

func runListCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: shield-rules list <path> [<path>...]\n")
		os.Exit(1)
	}

	extractor, _ := newPipeline()
	for _, path := range collectRuleFiles(paths) {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			continue
		}
		rows, err := extractor.Extract(f, path)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", path, err)
			continue
		}
		for _, row := range rows {
			fmt.Printf("%-20s  %-12s  %-10s  sev=%-8s  %s\n",
				row.RuleID, row.TechniqueID, row.Platform, row.Severity, row.Name)
		}
	}
	os.Exit(0)
}

func runImportCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "MITRE Shield server URL")
	token := fs.String("token", "", "Bearer token for servers with auth enabled")
	allowUpdate := fs.Bool("allow-update", false, "Overwrite rules whose IDs already exist")
	validOnly := fs.Bool("valid-only", false, "Import only rules with neither errors nor warnings")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: shield-rules import [--server URL] [--allow-update] [--valid-only] <file>\n")
		os.Exit(1)
	}
	path := fs.Arg(0)

	extractor, validator := newPipeline()
	client := importer.NewClient(*server, *token)
	session := importer.NewSession(extractor, validator, client, nil)

	if err := session.SelectFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	result, err := session.Parse(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(result.Report())

	stats, err := session.Import(ctx, importer.ImportOptions{
		ValidOnly:   *validOnly,
		AllowUpdate: *allowUpdate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nImport complete: %d created, %d updated (%d total)\n",
		stats.Created, stats.Updated, stats.Total)
}

func runTemplateCmd(args []string) {
	fs := flag.NewFlagSet("template", flag.ExitOnError)
	fs.Parse(args)

	path := "detection_rules_template.csv"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := importer.WriteTemplate(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Template written to %s\n", path)
}

func parseFile(extractor *importer.Extractor, validator *validation.Validator, path string) (*validation.BatchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := extractor.Extract(f, path)
	if err != nil {
		return nil, err
	}
	result := validator.ValidateBatch(rows)
	return &result, nil
}

// collectRuleFiles expands directories into the CSV/XLSX files they
// contain; plain file arguments pass through unchanged.
func collectRuleFiles(paths []string) []string {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			files = append(files, path)
			continue
		}
		filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil || fi.IsDir() {
				return nil
			}
			if importer.SupportedFile(p) {
				files = append(files, p)
			}
			return nil
		})
	}
	return files
}
