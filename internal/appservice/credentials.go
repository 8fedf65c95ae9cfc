package appservice

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	shipiterr "github.com/familyevents/shipit/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Credentials is the service principal bundle used by cloud login
// actions, stored as a single JSON secret.
type Credentials struct {
	ClientID       string `json:"clientId" validate:"required"`
	ClientSecret   string `json:"clientSecret" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	TenantID       string `json:"tenantId" validate:"required"`
}

// ParseCredentials decodes and validates a credential bundle. Malformed
// bundles are authentication errors. Secret values never appear in the
// returned error.
func ParseCredentials(raw string) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credentials{}, fmt.Errorf("%w: cloud credentials are not valid JSON", shipiterr.ErrAuthentication)
	}
	if err := validate.Struct(c); err != nil {
		var missing []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				missing = append(missing, fe.Field())
			}
		}
		return Credentials{}, fmt.Errorf("%w: cloud credentials missing %v", shipiterr.ErrAuthentication, missing)
	}
	return c, nil
}
