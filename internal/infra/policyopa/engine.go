// Package policyopa evaluates the capture-admission policy bundle. Bundles
// are rego under a directory; the engine pins the bundle hash at load time
// and evaluates with a restricted builtin set so results are a pure function
// of the input.
package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
)

const resultQuery = "data.attest.capture.result"

// Engine holds one prepared query over an immutable bundle. The bundle id
// and hash recorded at load time are stamped into every evaluation so a
// capture record can always name the policy that admitted it.
type Engine struct {
	prepared   rego.PreparedEvalQuery
	bundleID   string
	bundleHash string
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}

	compiler := restrictedCompiler()
	prepared, err := rego.New(
		rego.Query(resultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if forbidden := forbiddenBuiltins(compiler); len(forbidden) > 0 {
		return nil, fmt.Errorf("forbidden builtins: %s", strings.Join(forbidden, ", "))
	}

	return &Engine{
		prepared:   prepared,
		bundleID:   bundleID,
		bundleHash: bundleHash,
	}, nil
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	results, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("empty policy result")
	}

	// the query yields an untyped rego object; a json round trip maps it
	// onto the domain result
	payload, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyEvaluation{}, err
	}
	sortDeny(result.Deny)

	return domain.PolicyEvaluation{
		BundleID:   e.bundleID,
		BundleHash: e.bundleHash,
		Result:     result,
	}, nil
}

// sortDeny orders deny entries by code then message so evaluations of the
// same input always compare equal.
func sortDeny(deny []domain.PolicyDeny) {
	sort.Slice(deny, func(i, j int) bool {
		if deny[i].Code == deny[j].Code {
			return deny[i].Message < deny[j].Message
		}
		return deny[i].Code < deny[j].Code
	})
}

func restrictedCompiler() *ast.Compiler {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	return ast.NewCompiler().WithCapabilities(capabilities)
}

// forbiddenBuiltins walks the compiled modules and reports, sorted, every
// builtin call outside the whitelist. The capabilities filter already fails
// compilation for unknown builtins; this walk catches whitelist gaps where
// a builtin exists in both sets under different capability versions.
func forbiddenBuiltins(compiler *ast.Compiler) []string {
	seen := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, known := ast.BuiltinMap[name]; !known {
				return false
			}
			if _, allowed := allowedBuiltins[name]; !allowed {
				seen[name] = struct{}{}
			}
			return false
		})
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
