package capture

import (
	"fmt"
	"strings"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	cryptoinfra "github.com/RoloBits/attestation-photo-mobile/internal/infra/crypto"
)

const (
	// Version identifies the claim generator in manifests it produces.
	Version = "0.4.0"

	actionCreated     = "c2pa.created"
	digitalSourceType = "http://cv.iptc.org/newscodes/digitalsourcetype/digitalCapture"
)

// CaptureContext carries the per-capture claims. It is immutable once handed
// to the pipeline.
type CaptureContext struct {
	AppName           string
	DeviceModel       string
	OSVersion         string
	CapturedAtISO8601 string
	TrustLevel        domain.TrustLevel
	Nonce             string
	Latitude          *float64
	Longitude         *float64
}

// Claim is the semantic content of the embedded manifest. The signature is
// computed over its JCS canonical JSON.
type Claim struct {
	Title              string          `json:"title"`
	Format             string          `json:"format"`
	ClaimGeneratorInfo []GeneratorInfo `json:"claim_generator_info"`
	AssetHash          AssetHash       `json:"asset_hash"`
	Assertions         []Assertion     `json:"assertions"`
}

type GeneratorInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type AssetHash struct {
	Alg  string `json:"alg"`
	Hash string `json:"hash"`
}

type Assertion struct {
	Label string         `json:"label"`
	Data  map[string]any `json:"data"`
}

// Assertion returns the data of the first assertion with the given label.
func (c Claim) Assertion(label string) (map[string]any, bool) {
	for _, a := range c.Assertions {
		if a.Label == label {
			return a.Data, true
		}
	}
	return nil, false
}

// BuildClaim assembles the claim set for one capture, bound to the SHA-256
// of the original unsigned image bytes.
func BuildClaim(ctx CaptureContext, sourceHashHex string) Claim {
	// manufacturer is the first word of the device model
	manufacturer := ctx.DeviceModel
	if fields := strings.Fields(ctx.DeviceModel); len(fields) > 0 {
		manufacturer = fields[0]
	}

	exif := map[string]any{
		"@context": map[string]any{
			"exif": "http://ns.adobe.com/exif/1.0/",
		},
		"exif:Make":             manufacturer,
		"exif:Model":            ctx.DeviceModel,
		"exif:DateTimeOriginal": ctx.CapturedAtISO8601,
	}
	if ctx.Latitude != nil && ctx.Longitude != nil {
		exif["exif:GPSVersionID"] = "2.2.0.0"
		exif["exif:GPSLatitude"] = decimalToDMS(*ctx.Latitude, true)
		exif["exif:GPSLongitude"] = decimalToDMS(*ctx.Longitude, false)
		exif["exif:GPSTimeStamp"] = ctx.CapturedAtISO8601
	}

	assertions := []Assertion{
		{
			Label: "c2pa.actions",
			Data: map[string]any{
				"actions": []any{map[string]any{
					"action":            actionCreated,
					"digitalSourceType": digitalSourceType,
					"softwareAgent": map[string]any{
						"name":    ctx.AppName,
						"version": Version,
					},
				}},
			},
		},
		{
			Label: "stds.schema-org.CreativeWork",
			Data: map[string]any{
				"@context": "https://schema.org",
				"@type":    "CreativeWork",
				"author": []any{map[string]any{
					"@type": "Organization",
					"name":  ctx.AppName,
				}},
			},
		},
		{
			Label: "stds.exif",
			Data:  exif,
		},
		{
			Label: "attestation.device",
			Data: map[string]any{
				"deviceModel": ctx.DeviceModel,
				"osVersion":   ctx.OSVersion,
				"trustLevel":  string(ctx.TrustLevel),
			},
		},
		{
			Label: "attestation.capture_time",
			Data: map[string]any{
				"timestamp": ctx.CapturedAtISO8601,
			},
		},
	}

	if ctx.Nonce != "" {
		assertions = append(assertions, Assertion{
			Label: "attestation.trust",
			Data: map[string]any{
				"trustLevel": string(ctx.TrustLevel),
				"nonce":      ctx.Nonce,
			},
		})
	}

	// present exactly when both coordinates are supplied, never default-filled
	if ctx.Latitude != nil && ctx.Longitude != nil {
		assertions = append(assertions, Assertion{
			Label: "attestation.location",
			Data: map[string]any{
				"latitude":  *ctx.Latitude,
				"longitude": *ctx.Longitude,
			},
		})
	}

	return Claim{
		Title:              "Attested Photo " + ctx.CapturedAtISO8601,
		Format:             "image/jpeg",
		ClaimGeneratorInfo: []GeneratorInfo{{Name: ctx.AppName, Version: Version}},
		AssetHash:          AssetHash{Alg: "sha256", Hash: sourceHashHex},
		Assertions:         assertions,
	}
}

// ClaimBytesToSign returns the JCS canonical JSON the signer signs.
func ClaimBytesToSign(claim Claim) ([]byte, error) {
	return cryptoinfra.Canonicalize(claim)
}

// decimalToDMS converts decimal degrees to the EXIF degrees-minutes string,
// e.g. "39,21.102N".
func decimalToDMS(degrees float64, isLatitude bool) string {
	abs := degrees
	if abs < 0 {
		abs = -abs
	}
	d := int(abs)
	minutes := (abs - float64(d)) * 60

	var suffix byte
	switch {
	case isLatitude && degrees >= 0:
		suffix = 'N'
	case isLatitude:
		suffix = 'S'
	case degrees >= 0:
		suffix = 'E'
	default:
		suffix = 'W'
	}
	return fmt.Sprintf("%d,%.3f%c", d, minutes, suffix)
}
