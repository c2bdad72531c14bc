package catalog

import (
	"fmt"

	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
)

// ErrMalformedOption is returned when a catalog record lacks a required field
var ErrMalformedOption = shared.NewDomainError("MALFORMED_OPTION", "Catalog record is malformed")

func errOptionField(field string) error {
	return fmt.Errorf("%w: missing or invalid %s", ErrMalformedOption, field)
}

// Unavailable wraps cause as a source-unavailable error
func Unavailable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %v", op, shared.ErrSourceUnavailable, cause)
}
