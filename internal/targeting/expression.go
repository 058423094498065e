package targeting

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
)

// ErrInvalidExpression is returned when an expression is not valid JSON Logic.
var ErrInvalidExpression = errors.New("invalid expression: not valid JSON Logic")

// ErrEmptyExpression is returned when an expression is empty or whitespace.
var ErrEmptyExpression = errors.New("invalid expression: empty or whitespace")

// EvaluateExpression evaluates a JSON Logic expression against visitor
// data. Returns true if the visitor matches, false otherwise, and an
// error if the expression is invalid.
func EvaluateExpression(expression string, data map[string]any) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return false, ErrEmptyExpression
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return false, err
	}

	ruleReader := strings.NewReader(expression)
	dataReader := bytes.NewReader(dataBytes)
	var resultBuf bytes.Buffer

	if err := jsonlogic.Apply(ruleReader, dataReader, &resultBuf); err != nil {
		return false, ErrInvalidExpression
	}

	var result any
	if err := json.Unmarshal(resultBuf.Bytes(), &result); err != nil {
		return false, err
	}

	return isTruthy(result), nil
}

// ValidateExpression checks if an expression is valid JSON Logic.
func ValidateExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return ErrEmptyExpression
	}

	var rule any
	if err := json.Unmarshal([]byte(expression), &rule); err != nil {
		return ErrInvalidExpression
	}

	ruleReader := strings.NewReader(expression)
	dataReader := strings.NewReader("{}")
	var resultBuf bytes.Buffer

	if err := jsonlogic.Apply(ruleReader, dataReader, &resultBuf); err != nil {
		return ErrInvalidExpression
	}

	return nil
}

// isTruthy follows JavaScript-like truthiness rules.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
