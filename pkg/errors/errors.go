// Package errors provides common, reusable error values.
package errors

import "errors"

// Common errors
var (
	ErrRuleNotFound = errors.New("anomaly rule not found")
)
