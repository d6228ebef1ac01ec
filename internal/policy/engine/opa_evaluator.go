package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
)

const scopePolicyQuery = "data.sessionkeys.scope.allow"

// Scope policy. Token-transfer scopes restrict the target to the token
// contract only; the transfer amount lives inside calldata and is enforced
// on-chain, not here.
const scopeRegoPolicy = `package sessionkeys.scope

default allow = false

allow if {
	some p in input.permissions
	p.type == "root"
}

allow if {
	some p in input.permissions
	p.type == "native-transfer"
	input.call.data_len == 0
	to_number(input.call.value) <= to_number(p.max_amount)
}

allow if {
	some p in input.permissions
	p.type == "token-transfer"
	lower(input.call.to) == lower(p.token)
}

allow if {
	some p in input.permissions
	p.type == "contract-call"
	lower(input.call.to) == lower(p.address)
	not p.allowed_functions
}

allow if {
	some p in input.permissions
	p.type == "contract-call"
	lower(input.call.to) == lower(p.address)
	count(p.allowed_functions) == 0
}

allow if {
	some p in input.permissions
	p.type == "contract-call"
	lower(input.call.to) == lower(p.address)
	some f in p.allowed_functions
	lower(f) == lower(input.call.selector)
}
`

// OPAEvaluator evaluates the scope policy with the in-process OPA Rego engine.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the scope policy and returns an evaluator for it.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	query, err := rego.New(
		rego.Query(scopePolicyQuery),
		rego.Module("scope.rego", scopeRegoPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile scope policy: %w", err)
	}
	return &OPAEvaluator{query: query}, nil
}

// EvaluateCall runs the scope policy over the session's permissions.
// No matching scope means denied, not an error.
func (e *OPAEvaluator) EvaluateCall(ctx context.Context, permissions []domain.Permission, call CallInput) (Decision, error) {
	input := map[string]any{
		"permissions": permissionsInput(permissions),
		"call": map[string]any{
			"to":       call.To,
			"value":    call.Value,
			"selector": call.Selector,
			"data_len": call.DataLen,
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate scope policy: %w", err)
	}
	allowed := len(rs) > 0 && len(rs[0].Expressions) > 0 && rs[0].Expressions[0].Value == true
	return Decision{Allowed: allowed}, nil
}

func permissionsInput(permissions []domain.Permission) []any {
	out := make([]any, 0, len(permissions))
	for _, p := range permissions {
		m := map[string]any{"type": string(p.Type)}
		if p.MaxAmount != "" {
			m["max_amount"] = p.MaxAmount
		}
		if p.Token != "" {
			m["token"] = p.Token
		}
		if p.Address != "" {
			m["address"] = p.Address
		}
		if p.AllowedFunctions != nil {
			fns := make([]any, 0, len(p.AllowedFunctions))
			for _, f := range p.AllowedFunctions {
				fns = append(fns, strings.TrimSpace(f))
			}
			m["allowed_functions"] = fns
		}
		out = append(out, m)
	}
	return out
}
