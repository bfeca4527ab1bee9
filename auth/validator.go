// Package auth holds the display-name claim rules. There is no password or
// token flow: claiming a free display name is the whole authentication.
package auth

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type LoginRequest struct {
	Name string `validate:"required,min=1,max=32"`
}

// ValidateName checks a requested display name and returns the trimmed form.
// Names must be printable, free of whitespace and of the ':' and '/' runes
// the wire format reserves for message framing and commands.
func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := validate.Struct(LoginRequest{Name: name}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidName, err)
	}
	if !isNameClean(name) {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidName, name)
	}
	return name, nil
}

func isNameClean(s string) bool {
	if strings.HasPrefix(s, "/") {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) || r == ':' {
			return false
		}
	}
	return true
}
