// Command validate checks a dataset directory before it is served.
//
// It loads the traffic, weather, and events CSV tables, runs the full
// validation pass (schemas, value ranges, road and event membership,
// timestamp alignment), and reports row counts. Exits non-zero on the
// first failure, so it can gate a data refresh in CI or a cron job.
//
// Usage:
//
//	validate -data-dir=./data
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kofiasante/accracast/pkg/dataset"
)

func main() {
	dataDir := flag.String("data-dir", ".", "Directory containing the three CSV tables")
	flag.Parse()

	tables, err := dataset.Load(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("traffic: %d rows\n", len(tables.Traffic))
	fmt.Printf("weather: %d rows\n", len(tables.Weather))
	fmt.Printf("events:  %d rows\n", len(tables.Events))

	if err := tables.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "validation failed: %v\n", err)
		os.Exit(1)
	}

	for _, w := range tables.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	obs, err := tables.Merge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "merge failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("merged:  %d observations\n", len(obs))
	fmt.Println("dataset OK")
}
