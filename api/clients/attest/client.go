// Package attest is a typed HTTP client for the capture service. It is a
// standalone module so mobile backends can depend on it without pulling in
// the service's dependency tree.
package attest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// APIError is returned for any non-2xx response. Code matches the service's
// machine-readable error codes, for example COMPROMISED_DEVICE or NOT_FOUND.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attest API: status %d code %s: %s", e.StatusCode, e.Code, e.Message)
}

type Challenge struct {
	Nonce            string `json:"nonce"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

type Signals struct {
	Compromised    bool `json:"compromised"`
	PhysicalDevice bool `json:"physical_device"`
}

type CaptureInput struct {
	Image      []byte
	OutputName string
	Nonce      string
	Latitude   *float64
	Longitude  *float64
	Signals    *Signals
}

type Record struct {
	ID               string   `json:"id"`
	Path             string   `json:"path"`
	AssetHash        string   `json:"asset_hash"`
	SigningAlg       string   `json:"signing_alg"`
	ManifestFormat   string   `json:"manifest_format"`
	TrustLevel       string   `json:"trust_level"`
	EmbeddedManifest bool     `json:"embedded_manifest"`
	DeviceModel      string   `json:"device_model"`
	OSVersion        string   `json:"os_version"`
	CapturedAt       string   `json:"captured_at"`
	Nonce            string   `json:"nonce,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
}

type CaptureResult struct {
	Record           Record `json:"record"`
	PolicyBundleID   string `json:"policy_bundle_id,omitempty"`
	PolicyBundleHash string `json:"policy_bundle_hash,omitempty"`
	SignedImage      []byte `json:"-"`
}

type VerifyResult struct {
	SignatureValid bool     `json:"signature_valid"`
	HashValid      bool     `json:"hash_valid"`
	SignerTrusted  bool     `json:"signer_trusted"`
	AssetHash      string   `json:"asset_hash"`
	ClaimTitle     string   `json:"claim_title"`
	Assertions     []string `json:"assertions"`
	Record         *Record  `json:"record,omitempty"`
}

func (c *Client) CreateChallenge(ctx context.Context) (Challenge, error) {
	var out Challenge
	if err := c.do(ctx, http.MethodPost, "/v1/challenges", nil, &out); err != nil {
		return Challenge{}, err
	}
	return out, nil
}

func (c *Client) Capture(ctx context.Context, input CaptureInput) (CaptureResult, error) {
	if len(input.Image) == 0 {
		return CaptureResult{}, fmt.Errorf("image is required")
	}
	payload := map[string]any{
		"image_base64": base64.StdEncoding.EncodeToString(input.Image),
	}
	if input.OutputName != "" {
		payload["output_name"] = input.OutputName
	}
	if input.Nonce != "" {
		payload["nonce"] = input.Nonce
	}
	if input.Latitude != nil {
		payload["latitude"] = *input.Latitude
	}
	if input.Longitude != nil {
		payload["longitude"] = *input.Longitude
	}
	if input.Signals != nil {
		payload["signals"] = input.Signals
	}

	var raw struct {
		Record            Record `json:"record"`
		PolicyBundleID    string `json:"policy_bundle_id"`
		PolicyBundleHash  string `json:"policy_bundle_hash"`
		SignedImageBase64 string `json:"signed_image_base64"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/captures", payload, &raw); err != nil {
		return CaptureResult{}, err
	}
	signed, err := base64.StdEncoding.DecodeString(raw.SignedImageBase64)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("decode signed image: %w", err)
	}
	return CaptureResult{
		Record:           raw.Record,
		PolicyBundleID:   raw.PolicyBundleID,
		PolicyBundleHash: raw.PolicyBundleHash,
		SignedImage:      signed,
	}, nil
}

func (c *Client) Verify(ctx context.Context, image []byte) (VerifyResult, error) {
	if len(image) == 0 {
		return VerifyResult{}, fmt.Errorf("image is required")
	}
	payload := map[string]any{
		"image_base64": base64.StdEncoding.EncodeToString(image),
	}
	var out VerifyResult
	if err := c.do(ctx, http.MethodPost, "/v1/verify", payload, &out); err != nil {
		return VerifyResult{}, err
	}
	return out, nil
}

func (c *Client) GetCapture(ctx context.Context, assetHash string) (Record, error) {
	if assetHash == "" {
		return Record{}, fmt.Errorf("asset hash is required")
	}
	var out Record
	path := "/v1/captures/" + url.PathEscape(assetHash)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Record{}, err
	}
	return out, nil
}

func (c *Client) ListCaptures(ctx context.Context, limit int) ([]Record, error) {
	path := "/v1/captures"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c == nil {
		return fmt.Errorf("attest client is nil")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("capture service base URL is required")
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		bodyBytes, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(bodyBytes, &envelope); err == nil && envelope.Code != "" {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		} else {
			apiErr.Message = string(bodyBytes)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
