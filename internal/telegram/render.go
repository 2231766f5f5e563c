package telegram

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Render stringifies a claim value exactly as the provider did before signing.
// Numbers come out as plain decimals: no exponent, no leading zeros, no trailing ".0".
func Render(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case json.Number:
		return renderNumberLiteral(string(typed))
	case int:
		return strconv.Itoa(typed)
	case int8:
		return strconv.FormatInt(int64(typed), 10)
	case int16:
		return strconv.FormatInt(int64(typed), 10)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	case uint:
		return strconv.FormatUint(uint64(typed), 10)
	case uint8:
		return strconv.FormatUint(uint64(typed), 10)
	case uint16:
		return strconv.FormatUint(uint64(typed), 10)
	case uint32:
		return strconv.FormatUint(uint64(typed), 10)
	case uint64:
		return strconv.FormatUint(typed, 10)
	case float32:
		return renderFloat(float64(typed))
	case float64:
		return renderFloat(typed)
	default:
		return fmt.Sprint(typed)
	}
}

// Integer literals are kept verbatim so ids beyond 2^53 survive untouched.
func renderNumberLiteral(literal string) string {
	if isIntegerLiteral(literal) {
		if literal == "-0" {
			return "0"
		}
		return literal
	}
	parsed, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return literal
	}
	return renderFloat(parsed)
}

func renderFloat(value float64) string {
	switch {
	case math.IsNaN(value):
		return "NaN"
	case math.IsInf(value, 1):
		return "Infinity"
	case math.IsInf(value, -1):
		return "-Infinity"
	case value == 0:
		return "0"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func isIntegerLiteral(value string) bool {
	digits := value
	if len(digits) > 0 && digits[0] == '-' {
		digits = digits[1:]
	}
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}
