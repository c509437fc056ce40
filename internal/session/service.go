package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authcore.io/internal/audit"
	"authcore.io/internal/obs"
	"authcore.io/internal/roles"
	"authcore.io/internal/token"
)

const (
	defaultSessionTTL = 12 * time.Hour
	defaultSeedTTL    = 15 * time.Minute
)

// Service issues and validates session and seed tokens.
type Service struct {
	codec       *token.Codec
	invalid     *token.InvalidStore
	secret      []byte
	sessionTTL  time.Duration
	seedTTL     time.Duration
	now         func() time.Time
	logger      *zap.Logger
	metrics     *obs.Metrics
	catalog     *roles.Catalog
	roles       RoleReader
	directories map[string]SubjectStore
	limiter     *seedLimiter
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSecret sets the signing secret. It is copied and never changes after
// construction.
func WithSecret(secret []byte) ServiceOption {
	return func(s *Service) error {
		if len(secret) == 0 {
			return token.ErrMissingSecret
		}
		s.secret = slices.Clone(secret)
		return nil
	}
}

// WithSessionTTL configures session token lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithSeedTTL configures seed token lifetime.
func WithSeedTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.seedTTL = ttl
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) error {
		s.logger = obs.OrNop(logger)
		return nil
	}
}

func WithMetrics(m *obs.Metrics) ServiceOption {
	return func(s *Service) error {
		s.metrics = m
		return nil
	}
}

// WithRoles lets the service derive token scopes and list subject roles.
func WithRoles(catalog *roles.Catalog, reader RoleReader) ServiceOption {
	return func(s *Service) error {
		if catalog == nil || reader == nil {
			return errors.New("session: catalog and role reader are required together")
		}
		s.catalog = catalog
		s.roles = reader
		return nil
	}
}

// WithDirectory registers where subjects of scope are loaded from.
func WithDirectory(scope string, store SubjectStore) ServiceOption {
	return func(s *Service) error {
		if !KnownScope(scope) {
			return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
		}
		if store == nil {
			return errors.New("session: subject store is required")
		}
		s.directories[scope] = store
		return nil
	}
}

// WithSeedRateLimit caps seed token issuance per subject. perMinute <= 0
// disables the limit.
func WithSeedRateLimit(perMinute, burst int) ServiceOption {
	return func(s *Service) error {
		s.limiter = newSeedLimiter(perMinute, burst)
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(codec *token.Codec, invalid *token.InvalidStore, opts ...ServiceOption) (*Service, error) {
	if codec == nil || invalid == nil {
		return nil, errors.New("session: codec and invalid-token store are required")
	}
	s := &Service{
		codec:       codec,
		invalid:     invalid,
		sessionTTL:  defaultSessionTTL,
		seedTTL:     defaultSeedTTL,
		now:         time.Now,
		logger:      zap.NewNop(),
		directories: make(map[string]SubjectStore),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if len(s.secret) == 0 {
		return nil, token.ErrMissingSecret
	}
	return s, nil
}

// IssueOptions shape a new token. Zero values take the service defaults.
type IssueOptions struct {
	Scope          string
	OrganizationID string
	MFARequired    bool
	IsSeedToken    bool
	ValidAt        time.Time
	TTL            time.Duration
}

// Issue signs a token for subject. Without a scope, subjects holding one of
// the two most privileged global roles get an admin token and everyone else a
// user token.
func (s *Service) Issue(ctx context.Context, subject Subject, opts IssueOptions) (string, token.Claims, error) {
	if subject == nil {
		return "", token.Claims{}, ErrSubjectNotFound
	}
	ref := subject.Ref()
	if strings.TrimSpace(ref.ID) == "" {
		return "", token.Claims{}, ErrSubjectNotFound
	}
	scope := opts.Scope
	if scope == "" {
		derived, err := s.deriveScope(ctx, ref)
		if err != nil {
			return "", token.Claims{}, err
		}
		scope = derived
	}
	if !KnownScope(scope) {
		return "", token.Claims{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	now := s.now()
	if opts.IsSeedToken && !s.limiter.allow(ref.String(), now) {
		return "", token.Claims{}, ErrRateLimited
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.sessionTTL
		if opts.IsSeedToken {
			ttl = s.seedTTL
		}
	}
	claims := token.Claims{
		Scope:          scope,
		SubjectID:      ref.ID,
		OrganizationID: opts.OrganizationID,
		MFARequired:    opts.MFARequired,
		IsSeedToken:    opts.IsSeedToken,
		Nonce:          uuid.NewString(),
	}
	// Left zero, ValidAt is stamped by the codec from the same clock read it
	// validates against.
	if !opts.ValidAt.IsZero() {
		claims.ValidAt = opts.ValidAt.Unix()
	}
	return s.codec.EncodeWithTTL(claims, ttl, s.secret)
}

func (s *Service) deriveScope(ctx context.Context, ref roles.Ref) (string, error) {
	if s.roles == nil {
		return ScopeUser, nil
	}
	names, err := s.roles.NamesFor(ctx, ref, roles.ListOptions{Exact: true})
	if err != nil {
		return "", fmt.Errorf("load global roles: %w", err)
	}
	for _, top := range s.catalog.TopNames(roles.GlobalScope(ref.Kind), 2) {
		if slices.Contains(names, top) {
			return ScopeAdmin, nil
		}
	}
	return ScopeUser, nil
}

// ValidateOptions relax Validate.
type ValidateOptions struct {
	// OnlyVerify returns the claims once the signature checks out, without
	// looking at time, revocation or the subject.
	OnlyVerify    bool
	SkipMFACheck  bool
	SkipSeedCheck bool
}

// Result is a validated token.
type Result struct {
	Token   string
	Claims  token.Claims
	Subject Subject
	// Roles holds the subject's role names relevant to the token's
	// organization, when the service knows about roles.
	Roles []string
}

// Validate checks token and loads its subject.
func (s *Service) Validate(ctx context.Context, raw string, opts ValidateOptions) (res Result, err error) {
	defer func() {
		s.metrics.TokenValidation(resultLabel(err))
	}()

	claims, err := s.codec.Decode(raw, s.secret)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	res = Result{Token: raw, Claims: claims}
	if opts.OnlyVerify {
		return res, nil
	}

	now := s.now().Unix()
	switch {
	case now < claims.ValidAt:
		return Result{}, ErrTokenNotYetValid
	case now >= claims.ExpiresAt:
		return Result{}, ErrTokenExpired
	}
	if claims.MFARequired && !opts.SkipMFACheck {
		return Result{}, ErrMFARequired
	}
	if claims.IsSeedToken && !opts.SkipSeedCheck {
		return Result{}, ErrSeedTokenNotAuthenticatable
	}
	if !KnownScope(claims.Scope) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownScope, claims.Scope)
	}
	revoked, err := s.invalid.IsBlacklisted(ctx, raw)
	if err != nil {
		return Result{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Result{}, ErrTokenRevoked
	}

	dir, ok := s.directories[claims.Scope]
	if !ok {
		return Result{}, fmt.Errorf("%w: no directory for scope %s", ErrSubjectNotFound, claims.Scope)
	}
	subject, err := dir.LoadByID(ctx, claims.SubjectID)
	if err != nil {
		return Result{}, fmt.Errorf("load subject: %w", err)
	}
	if subject == nil {
		return Result{}, ErrSubjectNotFound
	}
	res.Subject = subject

	if s.roles != nil {
		res.Roles, err = s.subjectRoles(ctx, subject, claims.OrganizationID)
		if err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// subjectRoles lists subject's global roles and its roles on org, limited to
// the target kinds the subject reports.
func (s *Service) subjectRoles(ctx context.Context, subject Subject, org string) ([]string, error) {
	ref := subject.Ref()
	opts := roles.ListOptions{Exact: true}
	if org != "" {
		opts = roles.ListOptions{Target: &roles.Ref{Kind: roles.KindOrganization, ID: org}}
	}
	names, err := s.roles.NamesFor(ctx, ref, opts)
	if err != nil {
		return nil, fmt.Errorf("load subject roles: %w", err)
	}
	scope := roles.Scope{SourceKinds: []string{ref.Kind}, TargetKinds: subject.RoleScopeKinds()}
	return slices.DeleteFunc(names, func(name string) bool {
		_, ok := s.catalog.Find(name, scope)
		return !ok
	}), nil
}

// ExchangeOptions accompany a seed token exchange.
type ExchangeOptions struct {
	// MFAVerified is set once the caller has checked the second factor the
	// seed token asks for.
	MFAVerified bool
}

// Exchange spends a seed token and issues a session token for the same
// subject, scope and organization. A seed token can be exchanged once.
func (s *Service) Exchange(ctx context.Context, seed string, opts ExchangeOptions) (string, token.Claims, error) {
	res, err := s.Validate(ctx, seed, ValidateOptions{SkipMFACheck: true, SkipSeedCheck: true})
	if err != nil {
		return "", token.Claims{}, err
	}
	if !res.Claims.IsSeedToken {
		return "", token.Claims{}, ErrNotSeedToken
	}
	if res.Claims.MFARequired && !opts.MFAVerified {
		return "", token.Claims{}, ErrMFARequired
	}
	won, err := s.invalid.Consume(ctx, seed)
	if err != nil {
		return "", token.Claims{}, fmt.Errorf("consume seed token: %w", err)
	}
	if !won {
		return "", token.Claims{}, ErrTokenRevoked
	}

	raw, claims, err := s.Issue(ctx, res.Subject, IssueOptions{
		Scope:          res.Claims.Scope,
		OrganizationID: res.Claims.OrganizationID,
	})
	if err != nil {
		return "", token.Claims{}, err
	}
	_ = audit.LogEvent(audit.WithActor(ctx, res.Subject.Ref().String()), s.logger, "session.exchange",
		zap.String("scope", claims.Scope),
		zap.String("organization_id", claims.OrganizationID),
		zap.Time("expires_at", claims.ExpiryTime()),
	)
	return raw, claims, nil
}

// Revoke blacklists a token until it expires, e.g. on logout.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if err := s.invalid.Blacklist(ctx, raw); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, s.logger, "session.revoke", zap.String("token_hash", token.Hash(raw)))
	return nil
}
