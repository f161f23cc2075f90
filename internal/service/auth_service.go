package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hp-booking/internal/clock"
	"hp-booking/internal/event"
	"hp-booking/internal/metrics"
	"hp-booking/internal/model"
	"hp-booking/internal/token"
	"hp-booking/pkg/apierror"
)

const invalidCredentialsMessage = "Invalid email or password"

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateProfile(ctx context.Context, u model.User) error
}

type Publisher interface {
	Publish(e event.Event)
}

type AuthRecorder interface {
	ObserveAuth(operation string, outcome string)
}

type AuthDeps struct {
	Users    UserStore
	Codec    token.Codec
	Hasher   PasswordHasher
	Events   Publisher
	Recorder AuthRecorder
	Clock    clock.Clock
}

type AuthService struct {
	users     UserStore
	codec     token.Codec
	hasher    PasswordHasher
	events    Publisher
	recorder  AuthRecorder
	clock     clock.Clock
	validate  *validator.Validate
	tracer    trace.Tracer
	dummyHash string
}

type noopPublisher struct{}

func (noopPublisher) Publish(event.Event) {}

func NewAuthService(deps AuthDeps) (*AuthService, error) {
	if deps.Users == nil || deps.Codec == nil || deps.Hasher == nil {
		return nil, errors.New("auth service requires a user store, token codec and password hasher")
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	if deps.Recorder == nil {
		deps.Recorder = (*metrics.Metrics)(nil)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}

	// Unknown emails are compared against this hash so both failure paths
	// spend the same time in the hasher.
	dummyHash, err := deps.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:     deps.Users,
		codec:     deps.Codec,
		hasher:    deps.Hasher,
		events:    deps.Events,
		recorder:  deps.Recorder,
		clock:     deps.Clock,
		validate:  newValidator(),
		tracer:    otel.Tracer("hp-booking/internal/service"),
		dummyHash: dummyHash,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, ip string) (model.LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Struct(req); err != nil {
		s.recorder.ObserveAuth("login", metrics.OutcomeRejected)
		return model.LoginResult{}, endSpan(span, validationError(err))
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, req.Password)
		s.loginFailed(req.Email, ip, "unknown email")
		return model.LoginResult{}, endSpan(span, apierror.Authentication(invalidCredentialsMessage))
	case err != nil:
		s.recorder.ObserveAuth("login", metrics.OutcomeFailure)
		return model.LoginResult{}, endSpan(span, fmt.Errorf("login lookup: %w", err))
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.loginFailed(req.Email, ip, "wrong password")
		return model.LoginResult{}, endSpan(span, apierror.Authentication(invalidCredentialsMessage))
	}

	signed, err := s.issue(user)
	if err != nil {
		s.recorder.ObserveAuth("login", metrics.OutcomeFailure)
		return model.LoginResult{}, endSpan(span, err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("user.role", string(user.Role)))
	s.recorder.ObserveAuth("login", metrics.OutcomeSuccess)
	s.publish(event.TypeLoggedIn, user.Profile(), ip, "")

	return model.LoginResult{User: user.Profile(), Token: signed}, endSpan(span, nil)
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, ip string) (model.RegisterResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	var fields map[string]string
	if err := s.validate.Struct(req); err != nil {
		fields = validationError(err).Fields
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["role"] = "Role must be USER or ADMIN"
	}
	if len(fields) > 0 {
		s.recorder.ObserveAuth("register", metrics.OutcomeRejected)
		return model.RegisterResult{}, endSpan(span, apierror.Validation("Validation failed", fields))
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		s.recorder.ObserveAuth("register", metrics.OutcomeFailure)
		return model.RegisterResult{}, endSpan(span, fmt.Errorf("register lookup: %w", err))
	}
	if exists {
		s.registerConflict(req.Email, ip)
		return model.RegisterResult{}, endSpan(span, apierror.Conflict("Email already registered", ""))
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.recorder.ObserveAuth("register", metrics.OutcomeFailure)
		return model.RegisterResult{}, endSpan(span, fmt.Errorf("hash password: %w", err))
	}

	now := s.clock.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		PhoneNumber:  req.PhoneNumber,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			s.registerConflict(req.Email, ip)
			return model.RegisterResult{}, endSpan(span, apierror.Conflict("Email already registered", ""))
		}
		s.recorder.ObserveAuth("register", metrics.OutcomeFailure)
		return model.RegisterResult{}, endSpan(span, fmt.Errorf("register create: %w", err))
	}

	signed, err := s.issue(user)
	if err != nil {
		s.recorder.ObserveAuth("register", metrics.OutcomeFailure)
		return model.RegisterResult{}, endSpan(span, err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("user.role", string(user.Role)))
	s.recorder.ObserveAuth("register", metrics.OutcomeSuccess)
	s.publish(event.TypeRegistered, user.Profile(), ip, "")

	return model.RegisterResult{
		User:        user.Profile(),
		Token:       signed,
		RedirectURL: role.HomePath(),
	}, endSpan(span, nil)
}

// Authenticate verifies a session token. Every verification failure maps to
// model.ErrSessionInvalid; the cause is kept only for logs.
func (s *AuthService) Authenticate(tokenString string) (model.AuthClaims, error) {
	if tokenString == "" {
		return model.AuthClaims{}, model.ErrSessionMissing
	}
	payload, err := s.codec.Verify(tokenString)
	if err != nil {
		return model.AuthClaims{}, fmt.Errorf("%w: %v", model.ErrSessionInvalid, err)
	}
	return payload.Claims(), nil
}

// CurrentUser re-reads the profile so deleted accounts stop authenticating
// before their token expires.
func (s *AuthService) CurrentUser(ctx context.Context, claims model.AuthClaims) (model.UserProfile, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.CurrentUser",
		trace.WithAttributes(attribute.String("user.id", claims.UserID)))
	defer span.End()

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserProfile{}, endSpan(span, apierror.Authentication("Not authenticated"))
	}
	if err != nil {
		return model.UserProfile{}, endSpan(span, fmt.Errorf("current user: %w", err))
	}
	return user.Profile(), endSpan(span, nil)
}

// UpdateProfile applies the non-nil fields of req. A new token is returned
// when the email or name changed, since both are carried in the token.
func (s *AuthService) UpdateProfile(ctx context.Context, claims model.AuthClaims, req model.UpdateProfileRequest, ip string) (model.ProfileUpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.UpdateProfile",
		trace.WithAttributes(attribute.String("user.id", claims.UserID)))
	defer span.End()

	trimField(req.Name)
	trimField(req.PhoneNumber)
	if req.Email != nil {
		*req.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if err := s.validate.Struct(req); err != nil {
		return model.ProfileUpdateResult{}, endSpan(span, validationError(err))
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.ProfileUpdateResult{}, endSpan(span, apierror.Authentication("Not authenticated"))
	}
	if err != nil {
		return model.ProfileUpdateResult{}, endSpan(span, fmt.Errorf("update profile lookup: %w", err))
	}

	reissue := false
	if req.Name != nil && *req.Name != user.Name {
		user.Name = *req.Name
		reissue = true
	}
	if req.Email != nil && *req.Email != strings.ToLower(user.Email) {
		exists, err := s.users.ExistsByEmail(ctx, *req.Email)
		if err != nil {
			return model.ProfileUpdateResult{}, endSpan(span, fmt.Errorf("update profile email check: %w", err))
		}
		if exists {
			return model.ProfileUpdateResult{}, endSpan(span, apierror.Conflict("Email already registered", ""))
		}
		user.Email = *req.Email
		reissue = true
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	user.UpdatedAt = s.clock.Now().UTC()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.ProfileUpdateResult{}, endSpan(span, apierror.Conflict("Email already registered", ""))
		}
		return model.ProfileUpdateResult{}, endSpan(span, fmt.Errorf("update profile: %w", err))
	}

	result := model.ProfileUpdateResult{User: user.Profile()}
	if reissue {
		signed, err := s.issue(user)
		if err != nil {
			return model.ProfileUpdateResult{}, endSpan(span, err)
		}
		result.Token = signed
	}

	s.publish(event.TypeProfileUpdated, user.Profile(), ip, "")
	return result, endSpan(span, nil)
}

// Logout records the end of a session when tokenString still verifies.
// Logging out never fails.
func (s *AuthService) Logout(ctx context.Context, tokenString string, ip string) {
	_, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.Authenticate(tokenString)
	if err != nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return
	}
	span.SetAttributes(attribute.Bool("session.valid", true), attribute.String("user.id", claims.UserID))

	s.recorder.ObserveAuth("logout", metrics.OutcomeSuccess)
	s.publish(event.TypeLoggedOut, model.UserProfile{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, ip, "")
}

func (s *AuthService) issue(user model.User) (string, error) {
	signed, err := s.codec.Issue(token.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Name:   user.Name,
	})
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) loginFailed(email string, ip string, reason string) {
	s.recorder.ObserveAuth("login", metrics.OutcomeRejected)
	s.publish(event.TypeLoginFailed, model.UserProfile{Email: email}, ip, reason)
}

func (s *AuthService) registerConflict(email string, ip string) {
	s.recorder.ObserveAuth("register", metrics.OutcomeRejected)
	s.publish(event.TypeRegisterFailed, model.UserProfile{Email: email}, ip, "email already registered")
}

func (s *AuthService) publish(t event.Type, user model.UserProfile, ip string, reason string) {
	e := event.New(t, s.clock.Now())
	e.ActorID = user.ID
	e.Email = user.Email
	e.Role = string(user.Role)
	e.IP = ip
	e.Reason = reason
	s.events.Publish(e)
}

func trimField(value *string) {
	if value != nil {
		*value = strings.TrimSpace(*value)
	}
}

// endSpan records err on span and returns it unchanged.
func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
