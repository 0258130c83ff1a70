package negotiation

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// EvaluateOfferPolicy evaluates a seller guardrail expression against a
// proposed amount. An empty policy accepts every amount. The expression sees
// "amount", "initial" and "current" (0 when no offer is outstanding) and must
// evaluate to a boolean.
func EvaluateOfferPolicy(policy string, amount, initial float64, current *float64) (bool, error) {
	expr := strings.TrimSpace(policy)
	if expr == "" {
		return true, nil
	}

	cur := 0.0
	if current != nil {
		cur = *current
	}
	params := map[string]interface{}{
		"amount":  amount,
		"initial": initial,
		"current": cur,
	}

	ev, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return false, fmt.Errorf("%w: invalid offer policy", ErrValidation)
	}
	result, err := ev.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("%w: offer policy evaluation failed", ErrValidation)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: offer policy did not evaluate to boolean", ErrValidation)
	}
	return b, nil
}
