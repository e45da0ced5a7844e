package integration

import (
	"net/http"
	"testing"
)

func TestAuthFlow_RegisterLoginProfileRefresh(t *testing.T) {
	app := setupApp(t)

	// Step 1: Register
	token, userID := app.registerUser(t, "auth@test.com", "password123")
	if token == "" {
		t.Fatal("expected non-empty access token from registration")
	}
	if userID == "" {
		t.Fatal("expected a user ID")
	}

	// Step 2: Login with same credentials
	loginToken, refreshCookie := app.loginUser(t, "auth@test.com", "password123")
	if loginToken == "" {
		t.Fatal("expected non-empty access token from login")
	}
	if refreshCookie == nil {
		t.Fatal("expected a refresh token cookie from login")
	}
	if !refreshCookie.HttpOnly {
		t.Error("expected refresh cookie to be HTTP-only")
	}

	// Step 3: Access profile with login access token
	rec := app.request("GET", "/api/profile", "", loginToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	profile := parseData(t, rec)
	if profile["email"] != "auth@test.com" {
		t.Errorf("expected email auth@test.com, got %v", profile["email"])
	}

	// Step 4: Refresh the session using the cookie
	rec = app.requestWithCookie("POST", "/api/auth/refresh", "", refreshCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh failed: %d %s", rec.Code, rec.Body.String())
	}
	refreshData := parseData(t, rec)
	newToken := refreshData["token"].(string)
	if newToken == "" {
		t.Fatal("expected non-empty access token after refresh")
	}
	if rotated := refreshCookieFrom(rec); rotated == nil {
		t.Error("expected a rotated refresh cookie")
	}

	// Step 5: Access profile with new access token
	rec = app.request("GET", "/api/profile", "", newToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with new token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlow_RefreshWithoutCookie(t *testing.T) {
	app := setupApp(t)

	rec := app.request("POST", "/api/auth/refresh", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlow_LogoutInvalidatesRefresh(t *testing.T) {
	app := setupApp(t)

	app.registerUser(t, "logout@test.com", "password123")
	loginToken, refreshCookie := app.loginUser(t, "logout@test.com", "password123")

	rec := app.request("POST", "/api/auth/logout", "", loginToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed: %d %s", rec.Code, rec.Body.String())
	}

	// The old refresh cookie no longer matches the stored hash.
	rec = app.requestWithCookie("POST", "/api/auth/refresh", "", refreshCookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlow_RegisterDuplicateEmail(t *testing.T) {
	app := setupApp(t)

	app.registerUser(t, "dup@test.com", "password123")

	// Try to register again with same email
	rec := app.request("POST", "/api/auth/register",
		`{"email":"dup@test.com","password":"password123"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["success"] != false {
		t.Error("expected success false")
	}
	if result["message"] != "A user with this email already exists" {
		t.Errorf("unexpected message: %v", result["message"])
	}
}

func TestAuthFlow_LoginWrongPassword(t *testing.T) {
	app := setupApp(t)

	app.registerUser(t, "wrong@test.com", "password123")

	rec := app.request("POST", "/api/auth/login",
		`{"email":"wrong@test.com","password":"wrongpassword"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlow_AccountLockout(t *testing.T) {
	app := setupApp(t)

	app.registerUser(t, "lockout@test.com", "password123")

	// Fail 5 times
	for i := 0; i < 5; i++ {
		rec := app.request("POST", "/api/auth/login",
			`{"email":"lockout@test.com","password":"wrong"}`, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	// 6th attempt should get account locked (423)
	rec := app.request("POST", "/api/auth/login",
		`{"email":"lockout@test.com","password":"wrong"}`, "")
	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423 (locked), got %d: %s", rec.Code, rec.Body.String())
	}

	// Even with correct password, should still be locked
	rec = app.request("POST", "/api/auth/login",
		`{"email":"lockout@test.com","password":"password123"}`, "")
	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423 even with correct password while locked, got %d", rec.Code)
	}
}

func TestAuthFlow_ProfileWithoutAuth(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/profile", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthFlow_ProfileWithInvalidToken(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/profile", "", "invalid-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
