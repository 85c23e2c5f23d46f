package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Email validation regex (RFC 5322 simplified)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var fullNameRegex = regexp.MustCompile(`^[\p{L}\s\-'.]+$`)

const (
	MinPasswordLength = 8
	// bcrypt only hashes the first 72 bytes and rejects anything longer.
	MaxPasswordLength = 72
)

// NormalizeEmail lowercases and trims an address before lookups and writes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks if an email is in valid format
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 255 {
		return fmt.Errorf("email is too long (max 255 characters)")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePassword checks password length and that it mixes letters and digits.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password is too long (max %d bytes)", MaxPasswordLength)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}

	return nil
}

// ValidateFullName checks if full name is valid
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len([]rune(name)) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	if len(name) > 255 {
		return fmt.Errorf("name is too long (max 255 characters)")
	}

	// Letters, spaces, hyphens, apostrophes and dots
	if !fullNameRegex.MatchString(name) {
		return fmt.Errorf("name can only contain letters, spaces, hyphens, and apostrophes")
	}

	return nil
}

// ValidateImageType accepts the content types we store as profile images.
func ValidateImageType(contentType string) error {
	if contentType == "" {
		return fmt.Errorf("content type is required")
	}
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if _, ok := allowedImageTypes[mediaType]; !ok {
		return fmt.Errorf("image type not allowed: %s", mediaType)
	}
	return nil
}

// ImageExtension returns the file extension used for a stored image type.
func ImageExtension(contentType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if ext, ok := allowedImageTypes[mediaType]; ok {
		return ext
	}
	return ".bin"
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MaxImageSize caps imported profile images.
const MaxImageSize = 5 * 1024 * 1024
