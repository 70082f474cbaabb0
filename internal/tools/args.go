package tools

import (
	"time"
)

// stringArg extracts a required string argument.
func stringArg(tool string, args map[string]interface{}, field string) (string, error) {
	v, ok := args[field]
	if !ok {
		return "", &ValidationError{Tool: tool, Field: field, Reason: "required"}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &ValidationError{Tool: tool, Field: field, Reason: "must be a non-empty string"}
	}
	return s, nil
}

// optionalStringArg extracts an optional string argument.
func optionalStringArg(tool string, args map[string]interface{}, field string) (string, error) {
	v, ok := args[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Tool: tool, Field: field, Reason: "must be a string"}
	}
	return s, nil
}

// numberArg extracts a required numeric argument. JSON numbers arrive
// as float64.
func numberArg(tool string, args map[string]interface{}, field string) (float64, error) {
	v, ok := args[field]
	if !ok {
		return 0, &ValidationError{Tool: tool, Field: field, Reason: "required"}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, &ValidationError{Tool: tool, Field: field, Reason: "must be a number"}
	}
}

// positiveArg extracts a required number that must be > 0.
func positiveArg(tool string, args map[string]interface{}, field string) (float64, error) {
	n, err := numberArg(tool, args, field)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, &ValidationError{Tool: tool, Field: field, Reason: "must be positive"}
	}
	return n, nil
}

// intArg extracts an optional integer with a default.
func intArg(tool string, args map[string]interface{}, field string, def int) (int, error) {
	v, ok := args[field]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, &ValidationError{Tool: tool, Field: field, Reason: "must be an integer"}
	}
}

// periodStart resolves a period name to its start time. Empty defaults
// to month.
func periodStart(tool string, args map[string]interface{}, now time.Time) (time.Time, string, error) {
	period, err := optionalStringArg(tool, args, "period")
	if err != nil {
		return time.Time{}, "", err
	}
	if period == "" {
		period = "month"
	}
	switch period {
	case "week":
		return now.AddDate(0, 0, -7), period, nil
	case "month":
		return now.AddDate(0, -1, 0), period, nil
	case "year":
		return now.AddDate(-1, 0, 0), period, nil
	default:
		return time.Time{}, "", &ValidationError{Tool: tool, Field: "period", Reason: "must be week, month, or year"}
	}
}
