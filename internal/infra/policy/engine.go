// Package policy evaluates channel-access rules from an OPA bundle. The
// engine is optional: without a configured bundle the server admits every
// stream request.
package policy

import (
	"context"
	"encoding/json"
	"errors"

	"meshwatch/internal/domain"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.meshwatch.policy.result"

type Engine struct {
	query      rego.PreparedEvalQuery
	bundleID   string
	bundleHash string
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}

	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	return &Engine{
		query:      prepared,
		bundleID:   bundleID,
		bundleHash: bundleHash,
	}, nil
}

func (e *Engine) BundleID() string {
	return e.bundleID
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("empty policy result")
	}
	result, err := decodeResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	return domain.PolicyEvaluation{
		BundleID:   e.bundleID,
		BundleHash: e.bundleHash,
		Result:     result,
	}, nil
}

func decodeResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}
