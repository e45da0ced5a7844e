package integration

import (
	"fmt"
	"net/http"
	"testing"
)

// createAccount creates an account through the API and returns its ID.
func (app *testApp) createAccount(t *testing.T, token, name, accountType, currency string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q,"currency":%q}`, name, accountType, currency)
	rec := app.request("POST", "/api/accounts", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseData(t, rec)["id"].(string)
}

func TestAccountFlow_BalanceDerivedFromTransactions(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "acct@test.com", "password123")

	accountID := app.createAccount(t, token, "Savings", "savings", "USD")

	// Fresh account carries no balance
	rec := app.request("GET", "/api/accounts/"+accountID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if balance := parseData(t, rec)["balance"]; balance != "0" {
		t.Errorf("expected balance 0, got %v", balance)
	}

	// Income of 50.00
	rec = app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"income","amount":50,"description":"Salary"}`, accountID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Expense of 30.25
	rec = app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":30.25,"description":"Groceries"}`, accountID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Balance = 50 - 30.25
	rec = app.request("GET", "/api/accounts/"+accountID, "", token)
	if balance := parseData(t, rec)["balance"]; balance != "19.75" {
		t.Errorf("expected balance 19.75, got %v", balance)
	}

	// Both transactions appear in the account history
	rec = app.request("GET", "/api/accounts/"+accountID+"/transactions", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	page := parseData(t, rec)
	if page["total_items"].(float64) != 2 {
		t.Errorf("expected 2 transactions, got %v", page["total_items"])
	}
}

func TestAccountFlow_DeleteTransactionRestoresBalance(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "delrev@test.com", "password123")

	accountID := app.createAccount(t, token, "Checking", "checking", "USD")

	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"income","amount":100}`, accountID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":30}`, accountID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	expenseID := parseData(t, rec)["id"].(string)

	rec = app.request("GET", "/api/accounts/"+accountID, "", token)
	if balance := parseData(t, rec)["balance"]; balance != "70" {
		t.Fatalf("expected balance 70 after expense, got %v", balance)
	}

	// Soft-deleted rows no longer count towards the derived balance
	rec = app.request("DELETE", "/api/transactions/"+expenseID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/accounts/"+accountID, "", token)
	if balance := parseData(t, rec)["balance"]; balance != "100" {
		t.Errorf("expected balance 100 after delete, got %v", balance)
	}
}

func TestAccountFlow_ListAndFilterAccounts(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "list@test.com", "password123")

	app.createAccount(t, token, "Account A", "checking", "USD")
	deactivated := app.createAccount(t, token, "Account B", "savings", "USD")

	rec := app.request("PUT", "/api/accounts/"+deactivated, `{"is_active":false}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/accounts", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if total := parseData(t, rec)["total_items"].(float64); total != 2 {
		t.Errorf("expected 2 accounts, got %v", total)
	}

	rec = app.request("GET", "/api/accounts?is_active=true", "", token)
	page := parseData(t, rec)
	if total := page["total_items"].(float64); total != 1 {
		t.Errorf("expected 1 active account, got %v", total)
	}
	items := page["items"].([]interface{})
	if items[0].(map[string]interface{})["name"] != "Account A" {
		t.Errorf("expected Account A, got %v", items[0])
	}
}

func TestAccountFlow_InactiveAccountRejectsTransactions(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "inactive@test.com", "password123")

	accountID := app.createAccount(t, token, "Dormant", "checking", "USD")
	rec := app.request("PUT", "/api/accounts/"+accountID, `{"is_active":false}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":10}`, accountID), token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inactive account, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAccountFlow_UserIsolation(t *testing.T) {
	app := setupApp(t)
	ownerToken, _ := app.registerUser(t, "owner@test.com", "password123")
	intruderToken, _ := app.registerUser(t, "intruder@test.com", "password123")

	accountID := app.createAccount(t, ownerToken, "Private", "checking", "USD")

	rec := app.request("GET", "/api/accounts/"+accountID, "", intruderToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's account, got %d: %s", rec.Code, rec.Body.String())
	}
}
