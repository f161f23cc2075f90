package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hp-booking/internal/clock"
	"hp-booking/internal/event"
	"hp-booking/internal/model"
	"hp-booking/internal/repository"
	"hp-booking/internal/token"
	"hp-booking/pkg/apierror"
)

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type plainHasher struct {
	mu       sync.Mutex
	compares int
}

func (h *plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *plainHasher) Compare(hash string, password string) error {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type capturePublisher struct {
	events []event.Event
}

func (p *capturePublisher) Publish(e event.Event) {
	p.events = append(p.events, e)
}

func (p *capturePublisher) types() []event.Type {
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type authFixture struct {
	svc    *AuthService
	users  *repository.MockUserRepository
	codec  *token.JWTCodec
	hasher *plainHasher
	events *capturePublisher
	clock  *clock.FakeClock
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	fake := clock.Fake(testNow)
	codec, err := token.NewJWTCodec("service-test-secret", fake)
	require.NoError(t, err)

	f := authFixture{
		users:  &repository.MockUserRepository{},
		codec:  codec,
		hasher: &plainHasher{},
		events: &capturePublisher{},
		clock:  fake,
	}
	f.svc, err = NewAuthService(AuthDeps{
		Users:  f.users,
		Codec:  codec,
		Hasher: f.hasher,
		Events: f.events,
		Clock:  fake,
	})
	require.NoError(t, err)
	return f
}

func storedUser() model.User {
	return model.User{
		ID:           "0b6f3d2e-8c1a-4a57-9d55-1f2e3a4b5c6d",
		Name:         "Siti Rahma",
		Email:        "siti@example.com",
		PasswordHash: "hashed:rahasia1",
		PhoneNumber:  "081234567890",
		Role:         model.RoleUser,
		CreatedAt:    testNow.Add(-48 * time.Hour),
		UpdatedAt:    testNow.Add(-48 * time.Hour),
	}
}

func requireAPIError(t *testing.T, err error, status int) *apierror.APIError {
	t.Helper()
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	require.Equal(t, status, apiErr.HTTPStatus)
	return apiErr
}

func TestNewAuthServiceRequiresCollaborators(t *testing.T) {
	_, err := NewAuthService(AuthDeps{})
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid credentials issue a verifiable token", func(t *testing.T) {
		f := newAuthFixture(t)
		user := storedUser()
		f.users.On("FindByEmail", mock.Anything, "siti@example.com").Return(user, nil).Once()

		result, err := f.svc.Login(ctx, model.LoginRequest{Email: " siti@example.com ", Password: "rahasia1"}, "10.0.0.7")
		require.NoError(t, err)

		assert.Equal(t, user.Profile(), result.User)
		payload, err := f.codec.Verify(result.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, payload.UserID)
		assert.Equal(t, model.RoleUser, payload.Role)
		assert.Equal(t, "Siti Rahma", payload.Name)
		assert.Equal(t, testNow.Add(token.SessionTTL), payload.ExpiresAt)

		require.Len(t, f.events.events, 1)
		assert.Equal(t, event.TypeLoggedIn, f.events.events[0].Type)
		assert.Equal(t, "10.0.0.7", f.events.events[0].IP)
		f.users.AssertExpectations(t)
	})

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", mock.Anything, "ghost@example.com").Return(model.User{}, model.ErrUserNotFound).Once()
		f.users.On("FindByEmail", mock.Anything, "siti@example.com").Return(storedUser(), nil).Once()

		_, unknownErr := f.svc.Login(ctx, model.LoginRequest{Email: "ghost@example.com", Password: "whatever"}, "")
		_, wrongErr := f.svc.Login(ctx, model.LoginRequest{Email: "siti@example.com", Password: "salah123"}, "")

		unknown := requireAPIError(t, unknownErr, http.StatusUnauthorized)
		wrong := requireAPIError(t, wrongErr, http.StatusUnauthorized)
		assert.Equal(t, "Invalid email or password", unknown.Message)
		assert.Equal(t, unknown, wrong)
		assert.Equal(t, 2, f.hasher.compares, "unknown email must still run the hasher")
		assert.Equal(t, []event.Type{event.TypeLoginFailed, event.TypeLoginFailed}, f.events.types())
	})

	t.Run("missing and malformed input is a validation error", func(t *testing.T) {
		f := newAuthFixture(t)

		cases := []struct {
			name  string
			req   model.LoginRequest
			field string
		}{
			{"missing email", model.LoginRequest{Password: "rahasia1"}, "email"},
			{"missing password", model.LoginRequest{Email: "siti@example.com"}, "password"},
			{"no domain dot", model.LoginRequest{Email: "siti@example", Password: "x"}, "email"},
			{"whitespace in email", model.LoginRequest{Email: "si ti@example.com", Password: "x"}, "email"},
		}
		for _, tc := range cases {
			_, err := f.svc.Login(ctx, tc.req, "")
			apiErr := requireAPIError(t, err, http.StatusBadRequest)
			assert.Contains(t, apiErr.Fields, tc.field, tc.name)
		}
		f.users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("store failure is not reported as bad credentials", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByEmail", mock.Anything, mock.Anything).Return(model.User{}, errors.New("connection reset")).Once()

		_, err := f.svc.Login(ctx, model.LoginRequest{Email: "siti@example.com", Password: "rahasia1"}, "")
		require.Error(t, err)
		var apiErr *apierror.APIError
		assert.False(t, errors.As(err, &apiErr))
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	validRequest := func() model.RegisterRequest {
		return model.RegisterRequest{
			Name:        "Budi Santoso",
			Email:       "Budi@Example.com",
			Password:    "rahasia1",
			PhoneNumber: "081234567890",
		}
	}

	t.Run("defaults to USER and redirects to booking", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("ExistsByEmail", mock.Anything, "budi@example.com").Return(false, nil).Once()
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Email == "budi@example.com" &&
				u.Role == model.RoleUser &&
				u.PasswordHash == "hashed:rahasia1" &&
				u.ID != "" &&
				u.CreatedAt.Equal(testNow)
		})).Return(nil).Once()

		result, err := f.svc.Register(ctx, validRequest(), "")
		require.NoError(t, err)

		assert.Equal(t, "/booking", result.RedirectURL)
		assert.Equal(t, model.RoleUser, result.User.Role)
		payload, err := f.codec.Verify(result.Token)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, payload.UserID)
		assert.Equal(t, []event.Type{event.TypeRegistered}, f.events.types())
		f.users.AssertExpectations(t)
	})

	t.Run("role is case-insensitive and admins go to admin", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("ExistsByEmail", mock.Anything, mock.Anything).Return(false, nil).Once()
		f.users.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		req := validRequest()
		req.Role = "admin"
		result, err := f.svc.Register(ctx, req, "")
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, result.User.Role)
		assert.Equal(t, "/admin", result.RedirectURL)
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Register(ctx, model.RegisterRequest{
			Email:       "not-an-email",
			Password:    "12345",
			PhoneNumber: "08123",
			Role:        "SUPERUSER",
		}, "")

		apiErr := requireAPIError(t, err, http.StatusBadRequest)
		assert.Equal(t, apierror.CodeValidation, apiErr.Code)
		assert.Equal(t, map[string]string{
			"name":        "name is required",
			"email":       "Invalid email format",
			"password":    "Password must be at least 6 characters",
			"phoneNumber": "Phone number must be 10-15 digits",
			"role":        "Role must be USER or ADMIN",
		}, apiErr.Fields)
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("phone with letters or too long is rejected", func(t *testing.T) {
		f := newAuthFixture(t)
		for _, phone := range []string{"08123456789a", strings.Repeat("1", 16), "+6281234567890"} {
			req := validRequest()
			req.PhoneNumber = phone
			_, err := f.svc.Register(ctx, req, "")
			apiErr := requireAPIError(t, err, http.StatusBadRequest)
			assert.Contains(t, apiErr.Fields, "phoneNumber", phone)
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("ExistsByEmail", mock.Anything, "budi@example.com").Return(true, nil).Once()

		_, err := f.svc.Register(ctx, validRequest(), "")
		requireAPIError(t, err, http.StatusConflict)
		assert.Equal(t, []event.Type{event.TypeRegisterFailed}, f.events.types())
	})

	t.Run("duplicate detected on insert conflicts", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("ExistsByEmail", mock.Anything, mock.Anything).Return(false, nil).Once()
		f.users.On("Create", mock.Anything, mock.Anything).Return(model.ErrUserAlreadyExists).Once()

		_, err := f.svc.Register(ctx, validRequest(), "")
		requireAPIError(t, err, http.StatusConflict)
	})
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	signed, err := f.codec.Issue(token.Identity{UserID: "u-1", Email: "a@b.co", Role: model.RoleAdmin})
	require.NoError(t, err)

	claims, err := f.svc.Authenticate(signed)
	require.NoError(t, err)
	assert.Equal(t, model.AuthClaims{UserID: "u-1", Email: "a@b.co", Role: model.RoleAdmin}, claims)

	_, err = f.svc.Authenticate("")
	assert.ErrorIs(t, err, model.ErrSessionMissing)

	_, err = f.svc.Authenticate(signed + "x")
	assert.ErrorIs(t, err, model.ErrSessionInvalid)

	f.clock.Set(testNow.Add(token.SessionTTL))
	_, err = f.svc.Authenticate(signed)
	assert.ErrorIs(t, err, model.ErrSessionInvalid)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newAuthFixture(t)
	user := storedUser()
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil).Once()
	f.users.On("FindByID", mock.Anything, "deleted").Return(model.User{}, model.ErrUserNotFound).Once()

	profile, err := f.svc.CurrentUser(ctx, model.AuthClaims{UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, user.Profile(), profile)

	_, err = f.svc.CurrentUser(ctx, model.AuthClaims{UserID: "deleted"})
	requireAPIError(t, err, http.StatusUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	claims := model.AuthClaims{UserID: storedUser().ID, Email: "siti@example.com", Role: model.RoleUser}

	str := func(s string) *string { return &s }

	t.Run("email change reissues the token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByID", mock.Anything, claims.UserID).Return(storedUser(), nil).Once()
		f.users.On("ExistsByEmail", mock.Anything, "siti.baru@example.com").Return(false, nil).Once()
		f.users.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Email == "siti.baru@example.com" && u.UpdatedAt.Equal(testNow)
		})).Return(nil).Once()

		result, err := f.svc.UpdateProfile(ctx, claims, model.UpdateProfileRequest{Email: str(" Siti.Baru@example.com ")}, "")
		require.NoError(t, err)
		require.NotEmpty(t, result.Token)

		payload, err := f.codec.Verify(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "siti.baru@example.com", payload.Email)
		assert.Equal(t, []event.Type{event.TypeProfileUpdated}, f.events.types())
	})

	t.Run("phone change keeps the token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByID", mock.Anything, claims.UserID).Return(storedUser(), nil).Once()
		f.users.On("UpdateProfile", mock.Anything, mock.Anything).Return(nil).Once()

		result, err := f.svc.UpdateProfile(ctx, claims, model.UpdateProfileRequest{PhoneNumber: str("089876543210")}, "")
		require.NoError(t, err)
		assert.Empty(t, result.Token)
		assert.Equal(t, "089876543210", result.User.PhoneNumber)
	})

	t.Run("taken email conflicts", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("FindByID", mock.Anything, claims.UserID).Return(storedUser(), nil).Once()
		f.users.On("ExistsByEmail", mock.Anything, "budi@example.com").Return(true, nil).Once()

		_, err := f.svc.UpdateProfile(ctx, claims, model.UpdateProfileRequest{Email: str("budi@example.com")}, "")
		requireAPIError(t, err, http.StatusConflict)
		f.users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
	})

	t.Run("invalid phone is rejected before lookup", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.UpdateProfile(ctx, claims, model.UpdateProfileRequest{PhoneNumber: str("12")}, "")
		requireAPIError(t, err, http.StatusBadRequest)
		f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newAuthFixture(t)
	signed, err := f.codec.Issue(token.Identity{UserID: "u-9", Email: "x@y.id", Role: model.RoleUser})
	require.NoError(t, err)

	f.svc.Logout(ctx, "", "")
	f.svc.Logout(ctx, "garbage", "")
	assert.Empty(t, f.events.events)

	f.svc.Logout(ctx, signed, "192.0.2.1")
	require.Len(t, f.events.events, 1)
	assert.Equal(t, event.TypeLoggedOut, f.events.events[0].Type)
	assert.Equal(t, "u-9", f.events.events[0].ActorID)
}
