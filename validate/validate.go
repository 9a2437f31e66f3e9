// Package validate holds the pure syntactic checks applied to target URLs
// and caller-chosen codes. Nothing here touches the network.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const linkCodeTag = "linkcode"

var (
	linkCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	v               = newValidator()
)

func newValidator() *validator.Validate {
	val := validator.New()
	if err := val.RegisterValidation(linkCodeTag, func(fl validator.FieldLevel) bool {
		return linkCodePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("failed to register " + linkCodeTag + " validation: " + err.Error())
	}
	return val
}

// NormalizeURL trims the input and prepends https:// when it carries
// neither an http:// nor an https:// prefix.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}

// IsValidURL reports whether input is an absolute http(s) URL with a host.
func IsValidURL(input string) bool {
	if err := v.Var(input, "required,url"); err != nil {
		return false
	}
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Hostname() != ""
}

// IsValidCustomCode reports whether code is non-empty and made only of
// letters, digits, '_' and '-'.
func IsValidCustomCode(code string) bool {
	return v.Var(code, "required,"+linkCodeTag) == nil
}
