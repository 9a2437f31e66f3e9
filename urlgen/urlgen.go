// Package urlgen produces random candidate codes for short links.
// Uniqueness is not guaranteed here; callers check candidates against the registry.
package urlgen

import (
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultAlphabet is the character set used for generated codes.
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the length of generated codes.
const DefaultLength = 8

var (
	ErrInvalidLength   = errors.New("code length must be positive")
	ErrInvalidAlphabet = errors.New("alphabet must contain between 1 and 255 characters")
)

// Generator draws codes of a given length.
type Generator interface {
	Generate(length int) (string, error)
}

// NanoIDGenerator draws every character independently and uniformly from its alphabet.
type NanoIDGenerator struct {
	alphabet string
}

// New returns a generator over the given alphabet.
func New(alphabet string) (*NanoIDGenerator, error) {
	if len(alphabet) == 0 || len(alphabet) > 255 {
		return nil, ErrInvalidAlphabet
	}
	return &NanoIDGenerator{alphabet: alphabet}, nil
}

// NewDefault returns a generator over DefaultAlphabet.
func NewDefault() *NanoIDGenerator {
	return &NanoIDGenerator{alphabet: DefaultAlphabet}
}

// Generate creates a new candidate code.
func (g *NanoIDGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	code, err := gonanoid.Generate(g.alphabet, length)
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return code, nil
}

// Generate creates a new code of DefaultLength from DefaultAlphabet.
func Generate() (string, error) {
	return NewDefault().Generate(DefaultLength)
}
