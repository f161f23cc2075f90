package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hp-booking/internal/clock"
	"hp-booking/internal/middleware"
	"hp-booking/internal/model"
	"hp-booking/internal/repository"
	"hp-booking/internal/service"
	"hp-booking/internal/session"
	"hp-booking/internal/token"
)

var handlerNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(hash string, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type handlerFixture struct {
	handler *AuthHandler
	auth    *middleware.AuthMiddleware
	users   *repository.MockUserRepository
	codec   *token.JWTCodec
}

func newHandlerFixture(t *testing.T) handlerFixture {
	t.Helper()

	fake := clock.Fake(handlerNow)
	codec, err := token.NewJWTCodec("handler-test-secret", fake)
	require.NoError(t, err)

	users := &repository.MockUserRepository{}
	svc, err := service.NewAuthService(service.AuthDeps{
		Users:  users,
		Codec:  codec,
		Hasher: plainHasher{},
		Clock:  fake,
	})
	require.NoError(t, err)

	cookies := session.NewCookieAdapter(session.CookieOptions{})
	auth := middleware.NewAuthMiddleware(svc, cookies)

	return handlerFixture{
		handler: NewAuthHandler(svc, cookies, auth, false),
		auth:    auth,
		users:   users,
		codec:   codec,
	}
}

func sampleUser(role model.Role) model.User {
	return model.User{
		ID:           "9d1c7a52-3f0e-4d6b-8a21-6c5b4e3d2f10",
		Name:         "Andi Wijaya",
		Email:        "andi@example.com",
		PasswordHash: "hashed:rahasia1",
		PhoneNumber:  "081298765432",
		Role:         role,
		CreatedAt:    handlerNow.Add(-time.Hour),
		UpdatedAt:    handlerNow.Add(-time.Hour),
	}
}

func jsonRequest(method string, target string, body any) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", session.CookieName)
	return nil
}

type envelope struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	Data            json.RawMessage `json:"data"`
	IsAuthenticated *bool           `json:"isAuthenticated"`
	Error           *model.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestLoginHandler(t *testing.T) {
	t.Parallel()

	t.Run("sets the session cookie and returns the profile", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.On("FindByEmail", mock.Anything, "andi@example.com").Return(sampleUser(model.RoleUser), nil).Once()

		rec := httptest.NewRecorder()
		f.handler.Login(rec, jsonRequest(http.MethodPost, "/auth/login", model.LoginRequest{
			Email:    "andi@example.com",
			Password: "rahasia1",
		}))

		require.Equal(t, http.StatusOK, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.True(t, env.Success)
		assert.Equal(t, "Login successful", env.Message)

		var data model.LoginResult
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "andi@example.com", data.User.Email)
		assert.NotContains(t, string(env.Data), "hashed:")

		cookie := sessionCookie(t, rec)
		assert.Equal(t, data.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		assert.Equal(t, 604800, cookie.MaxAge)
		assert.Equal(t, "/", cookie.Path)
		assert.False(t, cookie.Secure)
	})

	t.Run("wrong password is a generic 401 without cookie", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.On("FindByEmail", mock.Anything, "andi@example.com").Return(sampleUser(model.RoleUser), nil).Once()

		rec := httptest.NewRecorder()
		f.handler.Login(rec, jsonRequest(http.MethodPost, "/auth/login", model.LoginRequest{
			Email:    "andi@example.com",
			Password: "salah",
		}))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "Invalid email or password", env.Error.Message)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("broken JSON is a 400", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := httptest.NewRecorder()
		f.handler.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{")))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BAD_REQUEST", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("store outage is a generic 500", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.On("FindByEmail", mock.Anything, mock.Anything).Return(model.User{}, errors.New("dial tcp: refused")).Once()

		rec := httptest.NewRecorder()
		f.handler.Login(rec, jsonRequest(http.MethodPost, "/auth/login", model.LoginRequest{
			Email:    "andi@example.com",
			Password: "rahasia1",
		}))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "Unexpected server error", env.Error.Message)
		assert.NotContains(t, rec.Body.String(), "dial tcp")
	})
}

func TestRegisterHandler(t *testing.T) {
	t.Parallel()

	t.Run("admin registration redirects to admin", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.On("ExistsByEmail", mock.Anything, "baru@example.com").Return(false, nil).Once()
		f.users.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		rec := httptest.NewRecorder()
		f.handler.Register(rec, jsonRequest(http.MethodPost, "/auth/register", model.RegisterRequest{
			Name:        "Admin Baru",
			Email:       "baru@example.com",
			Password:    "rahasia1",
			PhoneNumber: "081200001111",
			Role:        "Admin",
		}))

		require.Equal(t, http.StatusCreated, rec.Code)
		var data model.RegisterResult
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
		assert.Equal(t, "/admin", data.RedirectURL)
		assert.Equal(t, data.Token, sessionCookie(t, rec).Value)
	})

	t.Run("field errors are returned", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := httptest.NewRecorder()
		f.handler.Register(rec, jsonRequest(http.MethodPost, "/auth/register", model.RegisterRequest{
			Name:        "X",
			Email:       "x@example.com",
			Password:    "123",
			PhoneNumber: "081200001111",
		}))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Equal(t, map[string]string{"password": "Password must be at least 6 characters"}, env.Error.Fields)
	})

	t.Run("duplicate email is a 409", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.users.On("ExistsByEmail", mock.Anything, "andi@example.com").Return(true, nil).Once()

		rec := httptest.NewRecorder()
		f.handler.Register(rec, jsonRequest(http.MethodPost, "/auth/register", model.RegisterRequest{
			Name:        "Andi",
			Email:       "andi@example.com",
			Password:    "rahasia1",
			PhoneNumber: "081200001111",
		}))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		for _, withCookie := range []bool{false, true} {
			f := newHandlerFixture(t)
			req := httptest.NewRequest(method, "/auth/logout", nil)
			if withCookie {
				signed, err := f.codec.Issue(token.Identity{UserID: "u-1", Email: "a@b.co", Role: model.RoleUser})
				require.NoError(t, err)
				req.AddCookie(&http.Cookie{Name: session.CookieName, Value: signed})
			}

			rec := httptest.NewRecorder()
			f.handler.Logout(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.JSONEq(t, `{"redirectUrl":"/"}`, string(env.Data))
			assert.Equal(t, "Logout successful", env.Message)

			cleared := sessionCookie(t, rec)
			assert.Empty(t, cleared.Value)
			assert.Equal(t, -1, cleared.MaxAge)
			assert.True(t, cleared.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, cleared.SameSite)
			assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
			assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
		}
	}
}

func TestMeHandler(t *testing.T) {
	t.Parallel()

	t.Run("authenticated", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := sampleUser(model.RoleAdmin)
		f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil).Once()

		signed, err := f.codec.Issue(token.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: signed})

		rec := httptest.NewRecorder()
		f.handler.Me(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var data model.MeResult
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
		assert.True(t, data.IsAuthenticated)
		assert.Equal(t, user.Profile(), data.User)
	})

	unauthenticated := map[string]func(f handlerFixture) *http.Request{
		"no cookie": func(handlerFixture) *http.Request {
			return httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		},
		"forged cookie": func(handlerFixture) *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "eyJhbGciOiJub25lIn0.e30."})
			return req
		},
		"deleted user": func(f handlerFixture) *http.Request {
			f.users.On("FindByID", mock.Anything, "gone").Return(model.User{}, model.ErrUserNotFound).Once()
			signed, _ := f.codec.Issue(token.Identity{UserID: "gone", Email: "g@o.ne", Role: model.RoleUser})
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: signed})
			return req
		},
	}
	for name, build := range unauthenticated {
		t.Run(name, func(t *testing.T) {
			f := newHandlerFixture(t)
			rec := httptest.NewRecorder()
			f.handler.Me(rec, build(f))

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.IsAuthenticated)
			assert.False(t, *env.IsAuthenticated)
			assert.NotNil(t, env.Error)
		})
	}
}

func TestUpdateProfileHandler(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	user := sampleUser(model.RoleUser)
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil).Once()
	f.users.On("ExistsByEmail", mock.Anything, "andi.baru@example.com").Return(false, nil).Once()
	f.users.On("UpdateProfile", mock.Anything, mock.Anything).Return(nil).Once()

	newEmail := "andi.baru@example.com"
	req := jsonRequest(http.MethodPut, "/auth/profile", model.UpdateProfileRequest{Email: &newEmail})
	req = req.WithContext(middleware.WithClaims(context.Background(), model.AuthClaims{UserID: user.ID, Role: user.Role}))

	rec := httptest.NewRecorder()
	f.handler.UpdateProfile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	payload, err := f.codec.Verify(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, newEmail, payload.Email)

	t.Run("requires claims", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.UpdateProfile(rec, jsonRequest(http.MethodPut, "/auth/profile", map[string]string{}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
