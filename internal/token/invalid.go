package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"authcore.io/internal/audit"
	"authcore.io/internal/obs"
)

const defaultGrace = 120 * time.Second

// Record marks a spent token until PurgeAt.
type Record struct {
	TokenHash string
	PurgeAt   time.Time
}

// Repository stores invalid-token records.
type Repository interface {
	// Purge deletes records whose PurgeAt is at or before before.
	Purge(ctx context.Context, before time.Time) (int64, error)
	// Insert adds rec and reports whether it was new. An existing record with
	// the same hash is left untouched.
	Insert(ctx context.Context, rec Record) (bool, error)
	Exists(ctx context.Context, tokenHash string) (bool, error)
}

// InvalidStore is the blacklist of spent single-use and logged-out tokens.
type InvalidStore struct {
	repo    Repository
	codec   *Codec
	secret  []byte
	grace   time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *obs.Metrics
}

// InvalidStoreOption configures InvalidStore behavior.
type InvalidStoreOption func(*InvalidStore) error

// WithGrace sets how long a record outlives the token's own expiry.
func WithGrace(d time.Duration) InvalidStoreOption {
	return func(s *InvalidStore) error {
		if d < 0 {
			return errors.New("token: grace must not be negative")
		}
		s.grace = d
		return nil
	}
}

func WithClock(fn func() time.Time) InvalidStoreOption {
	return func(s *InvalidStore) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

func WithLogger(logger *zap.Logger) InvalidStoreOption {
	return func(s *InvalidStore) error {
		s.logger = obs.OrNop(logger)
		return nil
	}
}

func WithMetrics(m *obs.Metrics) InvalidStoreOption {
	return func(s *InvalidStore) error {
		s.metrics = m
		return nil
	}
}

func NewInvalidStore(repo Repository, codec *Codec, secret []byte, opts ...InvalidStoreOption) (*InvalidStore, error) {
	if repo == nil {
		return nil, errors.New("token: invalid-token repository is required")
	}
	if codec == nil {
		return nil, errors.New("token: codec is required")
	}
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	s := &InvalidStore{
		repo:   repo,
		codec:  codec,
		secret: secret,
		grace:  defaultGrace,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Blacklist records token as spent. Tokens that do not decode are ignored.
func (s *InvalidStore) Blacklist(ctx context.Context, token string) error {
	_, err := s.insert(ctx, token)
	if errors.Is(err, ErrMalformed) {
		s.logger.Debug("skip blacklisting undecodable token", zap.Error(err))
		return nil
	}
	return err
}

// Consume records token as spent and reports whether this call was the one
// that spent it. Of several concurrent calls for one token, exactly one
// returns true.
func (s *InvalidStore) Consume(ctx context.Context, token string) (bool, error) {
	inserted, err := s.insert(ctx, token)
	if err != nil {
		return false, err
	}
	if inserted {
		_ = audit.LogEvent(ctx, s.logger, "token.consume", zap.String("token_hash", Hash(token)))
	}
	return inserted, nil
}

func (s *InvalidStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return s.repo.Exists(ctx, Hash(token))
}

func (s *InvalidStore) insert(ctx context.Context, token string) (bool, error) {
	now := s.now()
	if _, err := s.repo.Purge(ctx, now); err != nil {
		return false, fmt.Errorf("purge invalid tokens: %w", err)
	}
	claims, err := s.codec.Decode(token, s.secret)
	if err != nil {
		return false, err
	}
	rec := Record{
		TokenHash: Hash(token),
		PurgeAt:   claims.ExpiryTime().Add(s.grace),
	}
	inserted, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("insert invalid token: %w", err)
	}
	if inserted {
		s.metrics.TokenInvalidated()
	}
	return inserted, nil
}
