// Command sensor-gen generates the sensor catalog (pkg/sensor/catalog_gen.go)
// from a YAML description.
//
//	go run ./cmd/sensor-gen -catalog docs/sensors.yaml -output pkg/sensor
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

func main() {
	catalogPath := flag.String("catalog", "", "Path to the sensor catalog YAML (docs/sensors.yaml)")
	outputDir := flag.String("output", "", "Output directory for catalog_gen.go")
	flag.Parse()

	if *catalogPath == "" || *outputDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: sensor-gen -catalog <path> -output <dir>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*catalogPath, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(catalogPath, outputDir string) error {
	cat, err := LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	code, err := Generate(cat, filepath.ToSlash(catalogPath))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	outPath := filepath.Join(outputDir, "catalog_gen.go")
	if err := writeFormatted(outPath, code); err != nil {
		return err
	}
	fmt.Printf("  generated %s (%d sensors)\n", outPath, len(cat.Sensors))
	return nil
}

// writeFormatted formats Go source code with goimports and writes it to a file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Keep the raw output for debugging the template.
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
