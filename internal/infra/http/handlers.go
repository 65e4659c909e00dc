package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type challengeResponse struct {
	Nonce            string `json:"nonce"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

type captureRequest struct {
	ImageBase64 string        `json:"image_base64"`
	OutputName  string        `json:"output_name,omitempty"`
	Nonce       string        `json:"nonce,omitempty"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
	Signals     *signalsInput `json:"signals,omitempty"`
}

type signalsInput struct {
	Compromised    bool `json:"compromised"`
	PhysicalDevice bool `json:"physical_device"`
}

type captureResponse struct {
	Record            recordResponse `json:"record"`
	PolicyBundleID    string         `json:"policy_bundle_id,omitempty"`
	PolicyBundleHash  string         `json:"policy_bundle_hash,omitempty"`
	SignedImageBase64 string         `json:"signed_image_base64"`
}

type recordResponse struct {
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

type verifyRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type verifyResponse struct {
	SignatureValid bool            `json:"signature_valid"`
	HashValid      bool            `json:"hash_valid"`
	SignerTrusted  bool            `json:"signer_trusted"`
	AssetHash      string          `json:"asset_hash"`
	ClaimTitle     string          `json:"claim_title"`
	Assertions     []string        `json:"assertions"`
	Record         *recordResponse `json:"record,omitempty"`
}

func (s *Server) handleCreateChallenge(c *gin.Context) {
	if !s.enforceRateLimit(c, "challenges:create") {
		return
	}
	if s.nonces == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NONCES_UNAVAILABLE", "nonce store not configured")
		return
	}
	challenge, err := s.nonces.Issue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, challengeResponse{
		Nonce:            challenge,
		ExpiresInSeconds: int(s.cfg.NonceTTL().Seconds()),
	})
}

func (s *Server) handleCapture(c *gin.Context) {
	if !s.enforceRateLimit(c, "captures:create") {
		return
	}
	if s.captureUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_IMAGE_ENCODING", "invalid image encoding")
		return
	}

	ucReq := usecase.CaptureRequest{
		SourceBytes: image,
		OutputName:  req.OutputName,
		Nonce:       req.Nonce,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if req.Signals != nil {
		ucReq.Signals = &domain.DeviceSignals{
			Compromised:    req.Signals.Compromised,
			PhysicalDevice: req.Signals.PhysicalDevice,
		}
	}

	resp, err := s.captureUC.Execute(c.Request.Context(), ucReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, captureResponse{
		Record:            buildRecordResponse(resp.Record),
		PolicyBundleID:    resp.Policy.BundleID,
		PolicyBundleHash:  resp.Policy.BundleHash,
		SignedImageBase64: base64.StdEncoding.EncodeToString(resp.SignedJPEG),
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	if !s.enforceRateLimit(c, "verify") {
		return
	}
	if s.verifyUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_IMAGE_ENCODING", "invalid image encoding")
		return
	}

	resp, err := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyRequest{SignedJPEG: image})
	if err != nil {
		writeError(c, err)
		return
	}

	out := verifyResponse{
		SignatureValid: resp.Verification.SignatureValid,
		HashValid:      resp.Verification.HashValid,
		SignerTrusted:  resp.Verification.SignerTrusted,
		AssetHash:      resp.Verification.AssetHashHex,
		ClaimTitle:     resp.Verification.Claim.Title,
	}
	for _, assertion := range resp.Verification.Claim.Assertions {
		out.Assertions = append(out.Assertions, assertion.Label)
	}
	if resp.Record != nil {
		record := buildRecordResponse(*resp.Record)
		out.Record = &record
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetCapture(c *gin.Context) {
	if !s.enforceRateLimit(c, "captures:read") {
		return
	}
	if s.records == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	record, err := s.records.GetByAssetHash(c.Request.Context(), c.Param("asset_hash"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRecordResponse(*record))
}

func (s *Server) handleListCaptures(c *gin.Context) {
	if !s.enforceRateLimit(c, "captures:read") {
		return
	}
	if s.records == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	records, err := s.records.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, buildRecordResponse(record))
	}
	c.JSON(http.StatusOK, gin.H{"records": out})
}

func buildRecordResponse(record domain.CaptureRecord) recordResponse {
	return recordResponse{
		ID:               record.ID,
		Path:             record.Path,
		AssetHash:        record.AssetHashHex,
		SigningAlg:       record.SigningAlg,
		ManifestFormat:   record.ManifestFormat,
		TrustLevel:       string(record.TrustLevel),
		EmbeddedManifest: record.EmbeddedManifest,
		DeviceModel:      record.DeviceModel,
		OSVersion:        record.OSVersion,
		CapturedAt:       record.CapturedAt,
		Nonce:            record.Nonce,
		Latitude:         record.Latitude,
		Longitude:        record.Longitude,
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrCompromisedDevice):
		status, code = http.StatusForbidden, "COMPROMISED_DEVICE"
	case errors.Is(err, domain.ErrNoTrustedHardware):
		status, code = http.StatusForbidden, "NO_TRUSTED_HARDWARE"
	case errors.Is(err, domain.ErrCaptureFailed):
		status, code = http.StatusBadRequest, "CAPTURE_FAILED"
	case errors.Is(err, domain.ErrManifestInvalid):
		status, code = http.StatusBadRequest, "MANIFEST_INVALID"
	case errors.Is(err, domain.ErrAttestationFailed):
		status, code = http.StatusServiceUnavailable, "ATTESTATION_FAILED"
	case errors.Is(err, domain.ErrSigningFailed):
		status, code = http.StatusInternalServerError, "SIGNING_FAILED"
	case errors.Is(err, domain.ErrManifestEmbedFailed):
		status, code = http.StatusInternalServerError, "MANIFEST_EMBED_FAILED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
