package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

type verifyOutput struct {
	SignatureValid bool   `json:"signature_valid"`
	HashValid      bool   `json:"hash_valid"`
	SignerTrusted  bool   `json:"signer_trusted"`
	AssetHash      string `json:"asset_hash"`
	ClaimTitle     string `json:"claim_title"`
	Subject        string `json:"certificate_subject"`
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	fs.StringVar(&inPath, "in", "", "signed JPEG path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in")
		return 1
	}

	image, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}

	result, err := capture.Verify(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}

	out := verifyOutput{
		SignatureValid: result.SignatureValid,
		HashValid:      result.HashValid,
		SignerTrusted:  result.SignerTrusted,
		AssetHash:      result.AssetHashHex,
		ClaimTitle:     result.Claim.Title,
	}
	if result.Certificate != nil {
		out.Subject = result.Certificate.Subject.String()
	}
	if code := printJSON(out); code != 0 {
		return code
	}
	if !result.SignatureValid || !result.HashValid {
		return 1
	}
	return 0
}
