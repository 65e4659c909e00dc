package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/RoloBits/attestation-photo-mobile/internal/infra/bundles"
)

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		inPath   string
		outPath  string
		bundleID string
	)
	fs.StringVar(&inPath, "in", "", "signed JPEG path")
	fs.StringVar(&outPath, "out", "", "write the bundle here instead of stdout")
	fs.StringVar(&bundleID, "bundle-id", "", "bundle identifier, generated when empty")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "export requires --in")
		return 1
	}

	image, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}

	payload, err := bundles.ExportJSON(bundles.BundleInput{
		BundleID:   bundleID,
		SignedJPEG: image,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return 1
	}

	if outPath == "" {
		fmt.Println(string(payload))
		return 0
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write bundle: %v\n", err)
		return 1
	}
	return 0
}
