// Package services implements link creation and resolution on top of a Storage.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-link-registry/config"
	"go-link-registry/expiry"
	"go-link-registry/storage"
	"go-link-registry/types"
	"go-link-registry/urlgen"
	"go-link-registry/validate"
)

var (
	ErrInvalidURL             = errors.New("invalid URL")
	ErrInvalidCodeFormat      = errors.New("invalid custom code format")
	ErrCodeUnavailable        = errors.New("custom code is already taken")
	ErrInvalidDuration        = expiry.ErrInvalidDuration
	ErrGenerationExhausted    = errors.New("could not generate an unused code")
	ErrNotFound               = errors.New("short link not found")
	ErrStorageCapacityReached = errors.New("storage capacity reached")
)

func handleStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrCodeConflict):
		return ErrCodeUnavailable
	case errors.Is(err, storage.ErrStorageCapacityReached):
		return ErrStorageCapacityReached
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}

// LinkService is the contract the client collaborator calls into.
type LinkService interface {
	CreateShortURL(ctx context.Context, rawURL string, opts types.CreateOptions) (types.LinkRecord, error)
	GetFullShortURL(code string) string
	IsValidURL(input string) bool
	IsValidCustomCode(code string) bool
	IsCustomCodeAvailable(ctx context.Context, code string) (bool, error)
}

type linkService struct {
	store     storage.Storage
	generator urlgen.Generator
	cfg       *config.Config
	clock     expiry.Clock
	logger    *zap.Logger
}

// NewLinkService creates a LinkService. A nil clock falls back to expiry.SystemClock.
func NewLinkService(store storage.Storage, generator urlgen.Generator, cfg *config.Config, clock expiry.Clock, logger *zap.Logger) (LinkService, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.CodeLength <= 0 || cfg.MaxGenerationAttempts <= 0 {
		return nil, errors.New("invalid code generation configuration")
	}
	if clock == nil {
		clock = expiry.SystemClock
	}

	return &linkService{
		store:     store,
		generator: generator,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}, nil
}

func (s *linkService) CreateShortURL(ctx context.Context, rawURL string, opts types.CreateOptions) (types.LinkRecord, error) {
	now := s.clock()

	targetURL := validate.NormalizeURL(rawURL)
	if !validate.IsValidURL(targetURL) {
		return types.LinkRecord{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	custom := opts.CustomCode != ""
	if custom && !validate.IsValidCustomCode(opts.CustomCode) {
		return types.LinkRecord{}, fmt.Errorf("%w: %q", ErrInvalidCodeFormat, opts.CustomCode)
	}

	expiresAt, err := resolveExpiry(now, opts)
	if err != nil {
		return types.LinkRecord{}, err
	}

	record := types.LinkRecord{
		TargetURL: targetURL,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		IsCustom:  custom,
	}

	if custom {
		record.Code = opts.CustomCode
		if err := s.putCustom(ctx, record); err != nil {
			return types.LinkRecord{}, err
		}
	} else {
		record, err = s.putGenerated(ctx, record)
		if err != nil {
			return types.LinkRecord{}, err
		}
	}

	s.logger.Info("Short link created",
		zap.String("code", record.Code),
		zap.String("target_url", record.TargetURL),
		zap.Bool("is_custom", record.IsCustom),
	)
	return record, nil
}

func (s *linkService) putCustom(ctx context.Context, record types.LinkRecord) error {
	live, err := s.store.ContainsLive(ctx, record.Code)
	if err != nil {
		return handleStorageError(err)
	}
	if live {
		return fmt.Errorf("%w: %q", ErrCodeUnavailable, record.Code)
	}

	// A concurrent caller may have claimed the code since the check above.
	if err := s.store.Put(ctx, record); err != nil {
		if errors.Is(err, storage.ErrCodeConflict) {
			return fmt.Errorf("%w: %q", ErrCodeUnavailable, record.Code)
		}
		return handleStorageError(err)
	}
	return nil
}

func (s *linkService) putGenerated(ctx context.Context, record types.LinkRecord) (types.LinkRecord, error) {
	for attempt := 1; attempt <= s.cfg.MaxGenerationAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return types.LinkRecord{}, err
		}

		code, err := s.generator.Generate(s.cfg.CodeLength)
		if err != nil {
			return types.LinkRecord{}, fmt.Errorf("generating code: %w", err)
		}

		live, err := s.store.ContainsLive(ctx, code)
		if err != nil {
			return types.LinkRecord{}, handleStorageError(err)
		}
		if live {
			s.logger.Debug("Generated code is taken", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}

		record.Code = code
		err = s.store.Put(ctx, record)
		if errors.Is(err, storage.ErrCodeConflict) {
			s.logger.Debug("Generated code was claimed concurrently", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return types.LinkRecord{}, handleStorageError(err)
		}
		return record, nil
	}

	s.logger.Warn("Code generation exhausted",
		zap.Int("attempts", s.cfg.MaxGenerationAttempts),
		zap.Int("code_length", s.cfg.CodeLength),
	)
	return types.LinkRecord{}, fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, s.cfg.MaxGenerationAttempts)
}

// resolveExpiry turns the absolute or relative expiry option into an instant after now.
func resolveExpiry(now time.Time, opts types.CreateOptions) (*time.Time, error) {
	switch {
	case opts.ExpiresAt != nil && opts.ExpiresIn != nil:
		return nil, fmt.Errorf("%w: absolute and relative expiry are mutually exclusive", ErrInvalidDuration)
	case opts.ExpiresIn != nil:
		expiresAt, err := expiry.ComputeExpiry(now, opts.ExpiresIn.Value, opts.ExpiresIn.Unit)
		if err != nil {
			return nil, err
		}
		return &expiresAt, nil
	case opts.ExpiresAt != nil:
		if !opts.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiry %s is not in the future", ErrInvalidDuration, opts.ExpiresAt.Format(time.RFC3339))
		}
		expiresAt := *opts.ExpiresAt
		return &expiresAt, nil
	default:
		return nil, nil
	}
}

func (s *linkService) GetFullShortURL(code string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(s.cfg.BaseURL, "/"))
	if segment := strings.Trim(s.cfg.PathSegment, "/"); segment != "" {
		b.WriteString("/")
		b.WriteString(segment)
	}
	b.WriteString("/")
	b.WriteString(code)
	return b.String()
}

func (s *linkService) IsValidURL(input string) bool {
	return validate.IsValidURL(input)
}

func (s *linkService) IsValidCustomCode(code string) bool {
	return validate.IsValidCustomCode(code)
}

func (s *linkService) IsCustomCodeAvailable(ctx context.Context, code string) (bool, error) {
	if !validate.IsValidCustomCode(code) {
		return false, fmt.Errorf("%w: %q", ErrInvalidCodeFormat, code)
	}
	live, err := s.store.ContainsLive(ctx, code)
	if err != nil {
		return false, handleStorageError(err)
	}
	return !live, nil
}
