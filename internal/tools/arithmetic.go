// Package tools holds the operations served behind the payment gate.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"paygate/internal/core/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned by divide when b is zero.
var ErrDivisionByZero = errors.New("division by zero")

var validate = validator.New()

// binaryArgs are the arguments of every arithmetic operation. Both numbers
// may be sent as JSON numbers or decimal strings.
type binaryArgs struct {
	A *decimal.Decimal `json:"a" validate:"required"`
	B *decimal.Decimal `json:"b" validate:"required"`
}

var binarySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "a": {"type": ["number", "string"], "description": "First operand"},
    "b": {"type": ["number", "string"], "description": "Second operand"}
  },
  "required": ["a", "b"]
}`)

// Arithmetic returns the add, subtract, multiply and divide operations.
func Arithmetic() []Tool {
	return []Tool{
		binary("add", "Add two numbers", func(a, b decimal.Decimal) (decimal.Decimal, error) {
			return a.Add(b), nil
		}),
		binary("subtract", "Subtract b from a", func(a, b decimal.Decimal) (decimal.Decimal, error) {
			return a.Sub(b), nil
		}),
		binary("multiply", "Multiply two numbers", func(a, b decimal.Decimal) (decimal.Decimal, error) {
			return a.Mul(b), nil
		}),
		binary("divide", "Divide a by b", func(a, b decimal.Decimal) (decimal.Decimal, error) {
			if b.IsZero() {
				return decimal.Zero, ErrDivisionByZero
			}
			return a.Div(b), nil
		}),
	}
}

func binary(name, description string, fn func(a, b decimal.Decimal) (decimal.Decimal, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: binarySchema,
		Handler: func(_ context.Context, inv *domain.Invocation) (*domain.OperationResult, error) {
			var args binaryArgs
			if len(inv.Arguments) > 0 {
				if err := json.Unmarshal(inv.Arguments, &args); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
			}
			if err := validate.Struct(args); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}

			result, err := fn(*args.A, *args.B)
			if err != nil {
				return nil, err
			}
			return &domain.OperationResult{
				Text:       result.String(),
				Structured: map[string]string{"result": result.String()},
			}, nil
		},
	}
}
