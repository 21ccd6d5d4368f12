package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"saas-core/backend/internal/audit"
	"saas-core/backend/internal/security"
	sessiondomain "saas-core/backend/internal/session/domain"
	sessionrepo "saas-core/backend/internal/session/repository"
	"saas-core/backend/internal/telemetry"
	telemetrydomain "saas-core/backend/internal/telemetry/domain"
	userdomain "saas-core/backend/internal/user/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP and gRPC codes.
var (
	// ErrTokenInvalid covers bad signature, malformed structure, expiry and a lost rotation race.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrSessionRevoked means the refresh token was reused or does not match its session.
	// Every session of the user has been revoked.
	ErrSessionRevoked = errors.New("session revoked; all sessions of the user have been revoked")
)

const instrumentationName = "saas-core/backend/internal/identity/service"

// Outcome values of the auth.* counters.
const (
	outcomeSuccess            = "success"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeTokenInvalid       = "token_invalid"
	outcomeSessionRevoked     = "session_revoked"
	outcomeError              = "error"
)

// AuthResult holds the outcome of Login or Refresh.
type AuthResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	UserID           string
	TenantID         string
	Role             userdomain.Role
}

// Verifier checks a tenant-scoped email and password.
type Verifier interface {
	Verify(ctx context.Context, tenantID, email, password string) (*userdomain.User, error)
}

// AuthService issues, rotates and revokes access/refresh token pairs. Each refresh token is
// bound to one session record; rotation revokes the record and creates a new one.
type AuthService struct {
	credentials Verifier
	sessions    sessionrepo.Repository
	tokens      *security.TokenCodec

	log    zerolog.Logger
	audit  audit.AuditLogger
	events telemetry.EventEmitter
	now    func() time.Time

	tracer      trace.Tracer
	logins      metric.Int64Counter
	refreshes   metric.Int64Counter
	compromised metric.Int64Counter
}

// Option configures an AuthService.
type Option func(*options)

type options struct {
	log            zerolog.Logger
	audit          audit.AuditLogger
	events         telemetry.EventEmitter
	now            func() time.Time
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithAudit records every auth outcome in the audit log.
func WithAudit(a audit.AuditLogger) Option { return func(o *options) { o.audit = a } }

// WithEvents streams every auth outcome to e asynchronously.
func WithEvents(e telemetry.EventEmitter) Option { return func(o *options) { o.events = e } }

// WithClock sets the time source for session records.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithMeterProvider sets the provider of the auth.* counters. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the provider of operation spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(credentials Verifier, sessions sessionrepo.Repository, tokens *security.TokenCodec, opts ...Option) (*AuthService, error) {
	o := options{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	s := &AuthService{
		credentials: credentials,
		sessions:    sessions,
		tokens:      tokens,
		log:         o.log,
		audit:       o.audit,
		events:      o.events,
		now:         o.now,
		tracer:      o.tracerProvider.Tracer(instrumentationName),
	}
	meter := o.meterProvider.Meter(instrumentationName)
	var err error
	if s.logins, err = meter.Int64Counter("auth.logins", metric.WithDescription("Login attempts by outcome")); err != nil {
		return nil, err
	}
	if s.refreshes, err = meter.Int64Counter("auth.refreshes", metric.WithDescription("Refresh attempts by outcome")); err != nil {
		return nil, err
	}
	if s.compromised, err = meter.Int64Counter("auth.sessions.compromised", metric.WithDescription("Refresh reuse detections")); err != nil {
		return nil, err
	}
	return s, nil
}

// Login verifies credentials within tenantID and opens a new session.
func (s *AuthService) Login(ctx context.Context, tenantID, email, password string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login", trace.WithAttributes(attribute.String("tenant_id", tenantID)))
	defer func() { s.finish(ctx, span, s.logins, err) }()

	u, err := s.credentials.Verify(ctx, tenantID, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.record(ctx, telemetrydomain.EventLoginFailed, tenantID, "", "", nil)
		}
		return nil, err
	}
	res, sessionID, err := s.issue(ctx, security.AccessClaims{Subject: u.ID, TenantID: u.TenantID, Role: string(u.Role)})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user_id", u.ID))
	s.record(ctx, telemetrydomain.EventLoginSucceeded, u.TenantID, u.ID, sessionID, nil)
	return res, nil
}

// Refresh rotates a refresh token. The presented token's session is revoked and a new pair bound
// to a new session is returned. A token whose session is missing, revoked or holds another
// token hash revokes every session of its subject and fails with ErrSessionRevoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { s.finish(ctx, span, s.refreshes, err) }()

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	span.SetAttributes(attribute.String("tenant_id", claims.TenantID), attribute.String("user_id", claims.Subject))

	sess, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	switch {
	case sess == nil:
		return nil, s.revokeAll(ctx, claims, "session_not_found")
	case sess.Revoked():
		return nil, s.revokeAll(ctx, claims, "session_revoked")
	case !security.RefreshTokenHashEqual(refreshToken, sess.TokenHash):
		return nil, s.revokeAll(ctx, claims, "token_hash_mismatch")
	case sess.UserID != claims.Subject:
		return nil, s.revokeAll(ctx, claims, "subject_mismatch")
	}
	if sess.Expired(s.now()) {
		return nil, ErrTokenInvalid
	}

	won, err := s.sessions.Revoke(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	if !won {
		// Another refresh of the same token rotated it first.
		return nil, ErrTokenInvalid
	}
	res, sessionID, err := s.issue(ctx, claims.AccessClaims)
	if err != nil {
		if errors.Is(err, sessiondomain.ErrSessionConflict) {
			return nil, ErrTokenInvalid
		}
		s.log.Error().Err(err).Str("user_id", claims.Subject).Str("session_id", sess.ID).
			Msg("auth: session rotated but successor not persisted; user must log in again")
		return nil, err
	}
	s.record(ctx, telemetrydomain.EventRefreshRotated, claims.TenantID, claims.Subject, sessionID,
		map[string]string{"previous_session_id": sess.ID})
	return res, nil
}

// Logout revokes the session of refreshToken if it verifies and belongs to its subject.
// It never fails: invalid tokens and store errors are absorbed. It reports whether a session was revoked.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) bool {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		span.SetAttributes(attribute.Bool("token_valid", false))
		return false
	}
	revoked, err := s.sessions.RevokeForUser(ctx, claims.SessionID, claims.Subject)
	if err != nil {
		span.RecordError(err)
		s.log.Warn().Err(err).Str("user_id", claims.Subject).Str("session_id", claims.SessionID).
			Msg("auth: logout revoke failed")
		return false
	}
	span.SetAttributes(attribute.Bool("revoked", revoked))
	if revoked {
		s.record(ctx, telemetrydomain.EventLogout, claims.TenantID, claims.Subject, claims.SessionID, nil)
	}
	return revoked
}

// issue mints a session id, signs both tokens and persists the session record.
func (s *AuthService) issue(ctx context.Context, claims security.AccessClaims) (*AuthResult, string, error) {
	sessionID := uuid.New().String()
	accessToken, accessExp, err := s.tokens.SignAccess(claims)
	if err != nil {
		return nil, "", fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, refreshExp, err := s.tokens.SignRefresh(security.RefreshClaims{AccessClaims: claims, SessionID: sessionID})
	if err != nil {
		return nil, "", fmt.Errorf("sign refresh token: %w", err)
	}
	sess := &sessiondomain.Session{
		ID:        sessionID,
		UserID:    claims.Subject,
		TokenHash: security.HashRefreshToken(refreshToken),
		ExpiresAt: refreshExp,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}
	return &AuthResult{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		UserID:           claims.Subject,
		TenantID:         claims.TenantID,
		Role:             userdomain.Role(claims.Role),
	}, sessionID, nil
}

// revokeAll is the compromise response: revoke every session of the token's subject.
// Revocation is best-effort; ErrSessionRevoked is returned either way.
func (s *AuthService) revokeAll(ctx context.Context, claims security.RefreshClaims, reason string) error {
	n, err := s.sessions.RevokeAllSessionsByUser(ctx, claims.Subject)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", claims.Subject).Str("reason", reason).
			Msg("auth: revoke all sessions after refresh reuse failed")
	} else {
		s.log.Warn().Str("user_id", claims.Subject).Str("tenant_id", claims.TenantID).
			Str("session_id", claims.SessionID).Str("reason", reason).Int64("revoked", n).
			Msg("auth: refresh reuse detected; revoked all sessions")
	}
	s.compromised.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	s.record(ctx, telemetrydomain.EventRefreshReuseDetected, claims.TenantID, claims.Subject, claims.SessionID,
		map[string]string{"reason": reason, "revoked": strconv.FormatInt(n, 10)})
	return ErrSessionRevoked
}

// record writes the audit entry and streams the auth event. Both are best-effort.
func (s *AuthService) record(ctx context.Context, eventType, tenantID, userID, sessionID string, metadata map[string]string) {
	if s.audit != nil {
		ar := audit.ParseEventType(eventType)
		s.audit.LogEvent(ctx, tenantID, userID, ar.Action, ar.Resource, metadata)
	}
	if s.events == nil {
		return
	}
	telemetry.EmitAsync(ctx, s.events, &telemetrydomain.AuthEvent{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		Source:    telemetrydomain.SourceAPI,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}, s.log)
}

// finish counts the operation outcome and ends its span.
func (s *AuthService) finish(ctx context.Context, span trace.Span, counter metric.Int64Counter, err error) {
	outcome := outcomeOf(err)
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("outcome", outcome))
	if outcome == outcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrInvalidCredentials):
		return outcomeInvalidCredentials
	case errors.Is(err, ErrTokenInvalid):
		return outcomeTokenInvalid
	case errors.Is(err, ErrSessionRevoked):
		return outcomeSessionRevoked
	default:
		return outcomeError
	}
}
