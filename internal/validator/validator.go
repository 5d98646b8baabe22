package validator

import (
	"parserator/internal/domain"
)

// TypeChecker validates and coerces one extracted value against a declared type.
type TypeChecker interface {
	// Check returns the coerced value and whether value satisfies the type.
	// Messages describe why a value was rejected.
	Check(value interface{}) (coerced interface{}, ok bool, message string)
	Type() domain.ValidationType
}
