package validator

import (
	"errors"
	"net/mail"
	"strings"
)

// ValidateEmail checks address shape. Deliverability is the mail
// provider's problem, not ours.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email format")
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || !strings.Contains(parts[1], ".") {
		return errors.New("invalid email domain")
	}
	return nil
}
