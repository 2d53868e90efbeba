package redmine

import (
	"regexp"
	"strings"

	apierrors "github.com/olgasafonova/redmine-wiki-exporter/internal/errors"
)

const (
	maxIdentifierLength = 100
	maxTitleLength      = 255
)

// identifierRegex matches Redmine project identifiers: lowercase letters,
// digits, dashes and underscores, with at least one character that is not
// a digit
var identifierRegex = regexp.MustCompile(`^[a-z0-9_-]*[a-z_-][a-z0-9_-]*$`)

// ValidateIdentifier checks a project identifier before it is used in a URL
func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return apierrors.NewValidationError("project", "", "is required")
	}
	if len(identifier) > maxIdentifierLength {
		return apierrors.NewValidationError("project", identifier, "must be at most 100 characters")
	}
	if !identifierRegex.MatchString(identifier) {
		return apierrors.NewValidationError("project", identifier,
			"must contain only a-z, 0-9, '-' and '_' and not be all digits")
	}
	return nil
}

// ValidateTitle checks a wiki page title
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apierrors.NewValidationError("title", "", "is required")
	}
	if len(title) > maxTitleLength {
		return apierrors.NewValidationError("title", "", "must be at most 255 characters")
	}
	return nil
}
