package main

import (
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/RoloBits/attestation-photo-mobile/internal/infra/jumbf"
)

type inspectOutput struct {
	Claim              json.RawMessage `json:"claim"`
	SignatureBytes     int             `json:"signature_bytes"`
	CertificateSubject string          `json:"certificate_subject"`
	CertificateIssuer  string          `json:"certificate_issuer"`
	NotBefore          string          `json:"not_before"`
	NotAfter           string          `json:"not_after"`
}

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	fs.StringVar(&inPath, "in", "", "signed JPEG path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "inspect requires --in")
		return 1
	}

	image, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}

	superbox, err := jumbf.Extract(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract manifest: %v\n", err)
		return 1
	}
	manifest, err := jumbf.Decode(superbox)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode manifest: %v\n", err)
		return 1
	}

	out := inspectOutput{
		Claim:          json.RawMessage(manifest.Claim),
		SignatureBytes: len(manifest.Signature),
	}
	if cert, err := x509.ParseCertificate(manifest.Certificate); err == nil {
		out.CertificateSubject = cert.Subject.String()
		out.CertificateIssuer = cert.Issuer.String()
		out.NotBefore = cert.NotBefore.UTC().Format("2006-01-02T15:04:05Z")
		out.NotAfter = cert.NotAfter.UTC().Format("2006-01-02T15:04:05Z")
	}

	return printJSON(out)
}
