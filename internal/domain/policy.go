package domain

// Deny codes produced by the capture policy bundle.
const (
	DenyCompromisedDevice = "compromised_device"
	DenyNoTrustedHardware = "no_trusted_hardware"
)

// DeviceSignals are the integrity signals the platform reports for the
// device performing a capture.
type DeviceSignals struct {
	TrustLevel     TrustLevel `json:"trust_level"`
	Compromised    bool       `json:"compromised"`
	PhysicalDevice bool       `json:"physical_device"`
}

type PolicyInput struct {
	Device  DeviceSignals  `json:"device"`
	Options *PolicyOptions `json:"options,omitempty"`
}

type PolicyOptions struct {
	RequireTrustedHardware bool `json:"require_trusted_hardware,omitempty"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
