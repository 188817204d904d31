package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"unicode/utf8"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
)

// Field limits. Lengths are counted in characters (runes), not bytes.
const (
	MaxHeaderLength   = 128
	MaxContentLength  = 10000
	MaxTags           = 50
	MaxTagLength      = 50
	MaxNameLength     = 128
	MaxEmailLength    = 128
	MinPasswordLength = 5
	MaxPasswordLength = 128
)

// namePattern allows letters (any script), spaces, hyphens and apostrophes.
var namePattern = regexp.MustCompile(`^[\p{L} '\-]+$`)

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		if minLen == 0 {
			return apperror.ValidationFailed(field,
				fmt.Sprintf("%s must be at most %d characters", field, maxLen))
		}
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be between %d and %d characters", field, minLen, maxLen))
	}
	return nil
}

func checkHeader(header string) error {
	return checkLength("header", header, 1, MaxHeaderLength)
}

func checkContent(content string) error {
	return checkLength("content", content, 0, MaxContentLength)
}

func checkTags(tags []string) error {
	if len(tags) > MaxTags {
		return apperror.ValidationFailed("tags",
			fmt.Sprintf("tags must contain at most %d elements", MaxTags))
	}
	for _, tag := range tags {
		if err := checkLength("tags", tag, 1, MaxTagLength); err != nil {
			return apperror.ValidationFailed("tags",
				fmt.Sprintf("each tag must be between 1 and %d characters", MaxTagLength))
		}
	}
	return nil
}

func checkAccess(access model.Access) error {
	if !access.Valid() {
		return apperror.ValidationFailed("access",
			"access must be one of the following values: PUBLIC, RESTRICTED, PRIVATE")
	}
	return nil
}

func checkName(name string) error {
	if err := checkLength("name", name, 1, MaxNameLength); err != nil {
		return err
	}
	if !namePattern.MatchString(name) {
		return apperror.ValidationFailed("name",
			"name may only contain letters, spaces, hyphens and apostrophes")
	}
	return nil
}

// checkEmail accepts a bare address ("jim@example.com"), not a display-name
// form like "Jim <jim@example.com>".
func checkEmail(email string) error {
	if err := checkLength("email", email, 1, MaxEmailLength); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return apperror.ValidationFailed("email", "email must be an email")
	}
	return nil
}

func checkPassword(password string) error {
	return checkLength("password", password, MinPasswordLength, MaxPasswordLength)
}

// notNull rejects an explicit null for a field that cannot be cleared.
func notNull[T any](field string, o model.Optional[T]) error {
	if o.Set && o.Null {
		return apperror.ValidationFailed(field, field+" must not be null")
	}
	return nil
}
