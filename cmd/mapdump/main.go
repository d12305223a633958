// Command mapdump prints an exported map file: an overview grid, the room
// list, connections and item assignments.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/lawnchairsociety/roomweaver/internal/mapfile"
)

func main() {
	inputFile := flag.String("input", "map.yaml", "Path to an exported map file")
	outputFile := flag.String("output", "", "Output file (empty for stdout)")
	scale := flag.Int("scale", 4, "Tiles per character in the overview grid")
	showGrid := flag.Bool("grid", true, "Show the overview grid")
	showLegend := flag.Bool("legend", true, "Show legend")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	data, err := mapfile.Load(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// files never get escape codes
	if *noColor || *outputFile != "" {
		color.Disable()
	}

	out := render(data, options{scale: *scale, grid: *showGrid, legend: *showLegend})

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(out), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Map written to %s\n", *outputFile)
		return
	}
	fmt.Print(out)
}
