package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
)

func TestEngineDeterministic(t *testing.T) {
	engine := newEngine(t)
	input := basePolicyInput()

	first, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate first: %v", err)
	}
	second, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate second: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic policy evaluation")
	}
	if !first.Result.Allow {
		t.Fatalf("expected allow for baseline input")
	}
	if len(first.Result.Deny) != 0 {
		t.Fatalf("expected empty deny list, got %+v", first.Result.Deny)
	}
	if first.BundleHash == "" {
		t.Fatalf("expected bundle hash to be set")
	}
}

func TestEnginePolicyDenies(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name   string
		mutate func(input *domain.PolicyInput)
		want   []string
	}{
		{
			name: "compromised device",
			mutate: func(input *domain.PolicyInput) {
				input.Device.Compromised = true
			},
			want: []string{domain.DenyCompromisedDevice},
		},
		{
			name: "emulator",
			mutate: func(input *domain.PolicyInput) {
				input.Device.PhysicalDevice = false
			},
			want: []string{domain.DenyCompromisedDevice},
		},
		{
			name: "software key with hardware required",
			mutate: func(input *domain.PolicyInput) {
				input.Device.TrustLevel = domain.TrustSoftwareFallback
				input.Options = &domain.PolicyOptions{RequireTrustedHardware: true}
			},
			want: []string{domain.DenyNoTrustedHardware},
		},
		{
			name: "compromised and software key",
			mutate: func(input *domain.PolicyInput) {
				input.Device.Compromised = true
				input.Device.TrustLevel = domain.TrustSoftwareFallback
				input.Options = &domain.PolicyOptions{RequireTrustedHardware: true}
			},
			want: []string{domain.DenyCompromisedDevice, domain.DenyNoTrustedHardware},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			input := basePolicyInput()
			tt.mutate(&input)
			out, err := engine.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Result.Allow {
				t.Fatalf("expected deny")
			}
			got := denyCodes(out.Result.Deny)
			if !reflect.DeepEqual(tt.want, got) {
				t.Fatalf("deny codes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineSoftwareKeyAllowedByDefault(t *testing.T) {
	engine := newEngine(t)
	input := basePolicyInput()
	input.Device.TrustLevel = domain.TrustSoftwareFallback

	out, err := engine.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !out.Result.Allow {
		t.Fatalf("software fallback denied without require_trusted_hardware: %+v", out.Result.Deny)
	}
}

func TestEngineRejectsTimeBuiltin(t *testing.T) {
	rejectBuiltin(t, "time.now_ns()")
}

func TestEngineRejectsHttpSend(t *testing.T) {
	rejectBuiltin(t, "http.send({\"method\": \"get\", \"url\": \"https://example.com\"})")
}

func TestEngineRejectsRand(t *testing.T) {
	rejectBuiltin(t, "rand.intn(10)")
}

func rejectBuiltin(t *testing.T, expr string) {
	t.Helper()
	dir := t.TempDir()
	regoContent := `package attest.capture
result := {"allow": true, "deny": []} {
  ` + expr + `
}`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}

	_, err := NewEngineFromBundlePath(context.Background(), dir, "test")
	if err == nil {
		t.Fatalf("expected builtin to be rejected")
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join("..", "..", "..", "policy", "bundles", "capture_v0")
	engine, err := NewEngineFromBundlePath(context.Background(), path, "capture_v0")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func basePolicyInput() domain.PolicyInput {
	return domain.PolicyInput{
		Device: domain.DeviceSignals{
			TrustLevel:     domain.TrustHardwareTEE,
			Compromised:    false,
			PhysicalDevice: true,
		},
	}
}

func denyCodes(denies []domain.PolicyDeny) []string {
	codes := make([]string, 0, len(denies))
	for _, d := range denies {
		codes = append(codes, d.Code)
	}
	return codes
}
