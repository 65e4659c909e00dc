package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/keys"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/keys/soft"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/storage"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

type captureOutput struct {
	Path       string   `json:"path"`
	AssetHash  string   `json:"asset_hash"`
	SigningAlg string   `json:"signing_alg"`
	Format     string   `json:"manifest_format"`
	TrustLevel string   `json:"trust_level"`
	CapturedAt string   `json:"captured_at"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

func runCapture(args []string) int {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var galleryDir string
	var keyDir string
	var keyAlias string
	var appName string
	var deviceModel string
	var osVersion string
	var nonce string
	var lat float64
	var lon float64

	fs.StringVar(&inPath, "in", "", "input JPEG path")
	fs.StringVar(&outPath, "out", "", "output path (default <gallery>/<hash>.jpg)")
	fs.StringVar(&galleryDir, "gallery", "gallery", "gallery directory")
	fs.StringVar(&keyDir, "key-dir", "keys", "key directory")
	fs.StringVar(&keyAlias, "key-alias", "attested_photo_key", "key alias")
	fs.StringVar(&appName, "app-name", "Attested Photo", "application name")
	fs.StringVar(&deviceModel, "device-model", "cli", "device model")
	fs.StringVar(&osVersion, "os-version", "cli", "os version")
	fs.StringVar(&nonce, "nonce", "", "server challenge nonce")
	fs.Float64Var(&lat, "lat", 0, "latitude")
	fs.Float64Var(&lon, "lon", 0, "longitude")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "capture requires --in")
		return 1
	}

	image, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}

	provisioner := keys.NewProvisioner(keyAlias, soft.NewManager(keyDir))
	level, err := provisioner.EnsureKey(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "provision key: %v\n", err)
		return 1
	}
	signer, err := provisioner.Signer(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load key: %v\n", err)
		return 1
	}

	ctx := capture.CaptureContext{
		AppName:           appName,
		DeviceModel:       deviceModel,
		OSVersion:         osVersion,
		CapturedAtISO8601: time.Now().UTC().Format(time.RFC3339),
		TrustLevel:        level,
		Nonce:             nonce,
	}
	if flagSet(fs, "lat") && flagSet(fs, "lon") {
		ctx.Latitude = &lat
		ctx.Longitude = &lon
	}

	result, err := capture.CaptureAndSign(image, ctx, signer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture: %v\n", err)
		return 1
	}

	var path string
	if outPath != "" {
		if err := os.WriteFile(outPath, result.SignedJPEG, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			return 1
		}
		path = outPath
	} else {
		gallery, err := storage.Open(galleryDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open gallery: %v\n", err)
			return 1
		}
		defer gallery.Close()
		path, err = gallery.Commit(result.AssetHashHex+".jpg", result.SignedJPEG)
		if err != nil {
			fmt.Fprintf(os.Stderr, "commit: %v\n", err)
			return 1
		}
	}

	out := captureOutput{
		Path:       filepath.Clean(path),
		AssetHash:  result.AssetHashHex,
		SigningAlg: domain.SigningAlg,
		Format:     domain.ManifestFormat,
		TrustLevel: string(level),
		CapturedAt: ctx.CapturedAtISO8601,
		Latitude:   ctx.Latitude,
		Longitude:  ctx.Longitude,
	}
	return printJSON(out)
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printJSON(v any) int {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return 1
	}
	fmt.Println(string(encoded))
	return 0
}
