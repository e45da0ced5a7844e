package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/services"
	"fintrack/internal/validator"
)

// --- mock services ---

type mockUserService struct {
	createUserFn            func(email, password, firstName, lastName string) (*models.User, error)
	getUserByEmailFn        func(email string) (*models.User, error)
	getUserByIDFn           func(id string) (*models.User, error)
	verifyPasswordFn        func(user *models.User, password string) bool
	attemptLoginFn          func(email, password string) (*models.User, error)
	storeRefreshTokenHashFn func(userID, tokenHash string) error
	getRefreshTokenHashFn   func(userID string) (string, error)
	clearRefreshTokenHashFn func(userID string) error
}

var _ services.UserServicer = (*mockUserService)(nil)

func (m *mockUserService) CreateUser(email, password, firstName, lastName string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, firstName, lastName)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) VerifyPassword(user *models.User, password string) bool {
	if m.verifyPasswordFn != nil {
		return m.verifyPasswordFn(user, password)
	}
	return true
}

func (m *mockUserService) AttemptLogin(email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) StoreRefreshTokenHash(userID, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

func (m *mockUserService) ClearRefreshTokenHash(userID string) error {
	if m.clearRefreshTokenHashFn != nil {
		return m.clearRefreshTokenHashFn(userID)
	}
	return nil
}

type mockAuditService struct{}

var _ services.AuditServicer = (*mockAuditService)(nil)

func (m *mockAuditService) Log(_, _, _, _, _ string, _ map[string]interface{}) {}

// --- test helpers ---

const testUserID = "0198a5f2-0000-7000-8000-000000000001"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/auth/register", handler.Register)
	r.POST("/api/auth/login", handler.Login)
	r.POST("/api/auth/refresh", handler.Refresh)
	r.POST("/api/auth/logout", injectUserID(testUserID), handler.Logout)
	r.GET("/api/profile", injectUserID(testUserID), handler.GetProfile)
	return r
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doRequestWithCookie(r *gin.Engine, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// parseData extracts the data payload from a success envelope.
func parseData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	result := parseJSON(t, rec)
	if result["success"] != true {
		t.Fatalf("expected success envelope, got: %s", rec.Body.String())
	}
	data, ok := result["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object in response, got: %s", rec.Body.String())
	}
	return data
}

func assertErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder, status int) map[string]interface{} {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["success"] != false {
		t.Errorf("expected success=false, got: %s", rec.Body.String())
	}
	if result["message"] == nil || result["message"] == "" {
		t.Error("expected non-empty error message")
	}
	return result
}

func refreshCookieFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == refreshCookieName {
			return cookie
		}
	}
	return nil
}

// --- tests ---

func TestAuthHandler_Register(t *testing.T) {
	t.Run("returns 201 with token and refresh cookie", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(email, _, firstName, lastName string) (*models.User, error) {
				return &models.User{
					Base:      models.Base{ID: testUserID},
					Email:     email,
					FirstName: firstName,
					LastName:  lastName,
				}, nil
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register",
			`{"email":"test@example.com","password":"password123","first_name":"John","last_name":"Doe"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		data := parseData(t, rec)
		if data["token"] == nil || data["token"] == "" {
			t.Error("expected non-empty access token")
		}
		user := data["user"].(map[string]interface{})
		if user["email"] != "test@example.com" {
			t.Errorf("expected email test@example.com, got %v", user["email"])
		}

		cookie := refreshCookieFrom(rec)
		if cookie == nil || cookie.Value == "" {
			t.Fatal("expected refresh token cookie to be set")
		}
		if !cookie.HttpOnly {
			t.Error("expected refresh cookie to be HTTP-only")
		}
		if cookie.Path != refreshCookiePath {
			t.Errorf("expected cookie path %s, got %s", refreshCookiePath, cookie.Path)
		}
	})

	t.Run("refresh token is not in the body", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(email, _, _, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register",
			`{"email":"test@example.com","password":"password123"}`)

		data := parseData(t, rec)
		if _, present := data["refresh_token"]; present {
			t.Error("refresh token must travel only in the cookie")
		}
	})

	t.Run("returns 400 on missing email", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register", `{"password":"password123"}`)
		result := assertErrorEnvelope(t, rec, http.StatusBadRequest)

		errs, ok := result["errors"].([]interface{})
		if !ok || len(errs) == 0 {
			t.Fatalf("expected field errors, got: %s", rec.Body.String())
		}
	})

	t.Run("returns 400 on short password", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register", `{"email":"test@example.com","password":"short"}`)
		assertErrorEnvelope(t, rec, http.StatusBadRequest)
	})

	t.Run("returns 400 on invalid email format", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register", `{"email":"not-an-email","password":"password123"}`)
		assertErrorEnvelope(t, rec, http.StatusBadRequest)
	})

	t.Run("returns 409 on duplicate email", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(_, _, _, _ string) (*models.User, error) {
				return nil, apperrors.ErrDuplicateEmail
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register", `{"email":"dup@example.com","password":"password123"}`)
		result := assertErrorEnvelope(t, rec, http.StatusConflict)
		if result["message"] != apperrors.ErrDuplicateEmail.Message {
			t.Errorf("expected duplicate email message, got %v", result["message"])
		}
	})

	t.Run("stores refresh token hash", func(t *testing.T) {
		var storedHash string
		userSvc := &mockUserService{
			createUserFn: func(email, _, _, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
			},
			storeRefreshTokenHashFn: func(_, hash string) error {
				storedHash = hash
				return nil
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register", `{"email":"test@example.com","password":"password123"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if storedHash == "" {
			t.Error("refresh token hash was not stored")
		}
		if len(storedHash) != 64 {
			t.Errorf("expected SHA-256 hex digest (64 chars), got %d chars", len(storedHash))
		}
	})

	t.Run("returns 500 when token storage fails", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(email, _, _, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
			},
			storeRefreshTokenHashFn: func(_, _ string) error {
				return fmt.Errorf("db connection lost")
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/register", `{"email":"test@example.com","password":"password123"}`)
		assertErrorEnvelope(t, rec, http.StatusInternalServerError)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(email, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email, FirstName: "Test"}, nil
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/login", `{"email":"test@example.com","password":"password123"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := parseData(t, rec)
		if data["token"] == nil || data["token"] == "" {
			t.Error("expected non-empty access token")
		}
		if refreshCookieFrom(rec) == nil {
			t.Error("expected refresh token cookie to be set")
		}
	})

	t.Run("returns 401 on invalid credentials", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrInvalidCredentials
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/login", `{"email":"test@example.com","password":"wrong"}`)
		result := assertErrorEnvelope(t, rec, http.StatusUnauthorized)
		if result["message"] != apperrors.ErrInvalidCredentials.Message {
			t.Errorf("expected invalid credentials message, got %v", result["message"])
		}
	})

	t.Run("returns 423 on locked account", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrAccountLocked
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/login", `{"email":"locked@example.com","password":"password123"}`)
		assertErrorEnvelope(t, rec, http.StatusLocked)
	})

	t.Run("returns 400 on missing fields", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/login", `{}`)
		assertErrorEnvelope(t, rec, http.StatusBadRequest)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Run("returns 401 without cookie", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/refresh", "")
		assertErrorEnvelope(t, rec, http.StatusUnauthorized)
	})

	t.Run("returns 401 on garbage token", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequestWithCookie(r, "POST", "/api/auth/refresh", "",
			&http.Cookie{Name: refreshCookieName, Value: "not-a-jwt"})
		assertErrorEnvelope(t, rec, http.StatusUnauthorized)
	})

	t.Run("rotates tokens with valid cookie", func(t *testing.T) {
		user := &models.User{Base: models.Base{ID: testUserID}, Email: "test@example.com"}
		refreshToken, err := middleware.GenerateRefreshToken(user)
		if err != nil {
			t.Fatalf("failed to generate refresh token: %v", err)
		}

		userSvc := &mockUserService{
			getUserByIDFn: func(_ string) (*models.User, error) { return user, nil },
			getRefreshTokenHashFn: func(_ string) (string, error) {
				return middleware.HashToken(refreshToken), nil
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequestWithCookie(r, "POST", "/api/auth/refresh", "",
			&http.Cookie{Name: refreshCookieName, Value: refreshToken})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := parseData(t, rec)
		if data["token"] == nil || data["token"] == "" {
			t.Error("expected new access token")
		}
		cookie := refreshCookieFrom(rec)
		if cookie == nil || cookie.Value == "" {
			t.Error("expected rotated refresh cookie")
		}
	})

	t.Run("returns 401 when stored hash does not match", func(t *testing.T) {
		user := &models.User{Base: models.Base{ID: testUserID}, Email: "test@example.com"}
		refreshToken, err := middleware.GenerateRefreshToken(user)
		if err != nil {
			t.Fatalf("failed to generate refresh token: %v", err)
		}

		userSvc := &mockUserService{
			getUserByIDFn:         func(_ string) (*models.User, error) { return user, nil },
			getRefreshTokenHashFn: func(_ string) (string, error) { return "stale-hash", nil },
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequestWithCookie(r, "POST", "/api/auth/refresh", "",
			&http.Cookie{Name: refreshCookieName, Value: refreshToken})
		assertErrorEnvelope(t, rec, http.StatusUnauthorized)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("clears stored hash and cookie", func(t *testing.T) {
		var clearedFor string
		userSvc := &mockUserService{
			clearRefreshTokenHashFn: func(userID string) error {
				clearedFor = userID
				return nil
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/api/auth/logout", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if clearedFor != testUserID {
			t.Errorf("expected hash cleared for %s, got %s", testUserID, clearedFor)
		}
		cookie := refreshCookieFrom(rec)
		if cookie == nil {
			t.Fatal("expected refresh cookie to be rewritten")
		}
		if cookie.MaxAge >= 0 && cookie.Value != "" {
			t.Error("expected refresh cookie to be expired")
		}
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	t.Run("returns 200 with user profile", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				return &models.User{
					Base:      models.Base{ID: id},
					Email:     "test@example.com",
					FirstName: "John",
					LastName:  "Doe",
				}, nil
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "GET", "/api/profile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := parseData(t, rec)
		if data["email"] != "test@example.com" {
			t.Errorf("expected test@example.com, got %v", data["email"])
		}
		if data["first_name"] != "John" {
			t.Errorf("expected John, got %v", data["first_name"])
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r := gin.New()
		r.GET("/api/profile", handler.GetProfile)

		rec := doRequest(r, "GET", "/api/profile", "")
		assertErrorEnvelope(t, rec, http.StatusUnauthorized)
	})

	t.Run("returns 404 when user not found", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(_ string) (*models.User, error) {
				return nil, apperrors.ErrUserNotFound
			},
		}
		handler := NewAuthHandler(userSvc, &mockAuditService{})
		r := setupAuthRouter(handler)

		rec := doRequest(r, "GET", "/api/profile", "")
		assertErrorEnvelope(t, rec, http.StatusNotFound)
	})
}
