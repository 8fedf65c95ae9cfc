// Package runtime contains the configuration consumed by shipit at
// runtime.
package runtime

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())
