package services

import (
	"context"
	"errors"
)

const (
	invalidURLProvided  = "Please enter a valid URL"
	invalidCodeFormat   = "Custom code can only contain letters, numbers, hyphens and underscores"
	codeUnavailable     = "This custom code is already taken"
	invalidDuration     = "Please choose a valid expiration time"
	generationExhausted = "Could not create a short link right now, please try again"
	shortURLNotFound    = "Short URL not found"
	storageCapacityFull = "Storage capacity reached"
	errorTimeout        = "Request timed out"
	errorCreatingURL    = "Error creating short URL"
)

var userMessages = []struct {
	err     error
	message string
}{
	{ErrInvalidURL, invalidURLProvided},
	{ErrInvalidCodeFormat, invalidCodeFormat},
	{ErrCodeUnavailable, codeUnavailable},
	{ErrInvalidDuration, invalidDuration},
	{ErrGenerationExhausted, generationExhausted},
	{ErrNotFound, shortURLNotFound},
	{ErrStorageCapacityReached, storageCapacityFull},
	{context.DeadlineExceeded, errorTimeout},
}

// UserMessage returns the message a client should show for an error returned by
// the services in this package. Unrecognised errors get a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	return errorCreatingURL
}
