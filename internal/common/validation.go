package common

import (
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
)

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 {
		return InvalidArg("username must be between 3 and 50 characters")
	}

	if !usernameRegex.MatchString(username) {
		return InvalidArg("username can only contain letters, numbers, underscores and hyphens")
	}

	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 6 {
		return InvalidArg("password must be at least 6 characters long")
	}

	if len(password) > 100 {
		return InvalidArg("password is too long")
	}

	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return InvalidArg("invalid email format")
	}

	return nil
}
