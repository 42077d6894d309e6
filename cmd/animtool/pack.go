package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/skelkit/pkg/rigpack"
)

func cmdPack(args []string) {
	if len(args) < 1 {
		printPackUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		cmdPackCreate(args[1:])
	case "list", "ls":
		cmdPackList(args[1:])
	case "extract", "x":
		cmdPackExtract(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown pack command: %s\n", args[0])
		printPackUsage()
		os.Exit(1)
	}
}

func printPackUsage() {
	fmt.Println(`Usage:
  animtool pack create <pack> <dir>
  animtool pack list <pack>
  animtool pack extract <pack> <path> [output_dir]`)
}

func cmdPackCreate(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool pack create <pack> <dir>")
		os.Exit(1)
	}

	if err := rigpack.CreateFromDir(args[0], args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	archive, err := rigpack.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	fmt.Printf("Created %s (%d assets)\n", args[0], len(archive.List()))
}

func cmdPackList(args []string) {
	fs := flag.NewFlagSet("pack list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: animtool pack list <pack>")
		os.Exit(1)
	}

	archive, err := rigpack.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	for i, f := range archive.List() {
		if *limit > 0 && i >= *limit {
			break
		}
		fmt.Println(f)
	}
}

func cmdPackExtract(args []string) {
	fs := flag.NewFlagSet("pack extract", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool pack extract <pack> <path> [output_dir]")
		os.Exit(1)
	}

	packPath := fs.Arg(0)
	filePath := fs.Arg(1)
	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	archive, err := rigpack.Open(packPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	// Glob patterns extract everything that matches the base name.
	if strings.Contains(filePath, "*") {
		extractPackPattern(archive, filePath, outputDir)
		return
	}

	if !archive.Contains(filePath) {
		fmt.Fprintf(os.Stderr, "File not found: %s\n", filePath)
		os.Exit(1)
	}

	data, err := archive.Read(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	outputPath := filepath.Join(outputDir, filepath.Base(filePath))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, len(data))
}

func extractPackPattern(archive *rigpack.Archive, pattern, outputDir string) {
	pattern = strings.ToLower(pattern)

	extracted := 0
	for _, f := range archive.List() {
		matched, _ := filepath.Match(pattern, strings.ToLower(filepath.Base(f)))
		if !matched {
			continue
		}

		data, err := archive.Read(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", f, err)
			continue
		}

		outputPath := filepath.Join(outputDir, f)
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			continue
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Extracted: %s\n", outputPath)
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
}
