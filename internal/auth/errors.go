package auth

import (
	"fmt"

	"tokenwarden/internal/provider"
	"tokenwarden/pkg/oauth"
)

// InteractionRequiredError is returned when no usable credential exists and
// the user has to complete the consent screen. AuthURL is a freshly created
// authorization URL; the matching session is pending on the client, so the
// caller only needs to open it and pass the callback parameters to Validate.
type InteractionRequiredError struct {
	Provider provider.Name
	AuthURL  string
}

func (e *InteractionRequiredError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, oauth.ErrInteractionRequired.Error())
}

// Unwrap makes errors.Is(err, oauth.ErrInteractionRequired) true.
func (e *InteractionRequiredError) Unwrap() error {
	return oauth.ErrInteractionRequired
}
