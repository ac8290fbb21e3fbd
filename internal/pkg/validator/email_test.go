package validator

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@sub.example.co",
		"tagged+alerts@example.io",
	}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("expected %q to validate, got %v", email, err)
		}
	}

	invalid := []string{
		"",
		"plainstring",
		"@example.com",
		"user@",
		"user@localhost",
		"User Name <user@example.com>",
		"two@@example.com",
	}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("expected %q to be rejected", email)
		}
	}
}
