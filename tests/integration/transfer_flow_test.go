package integration

import (
	"fmt"
	"net/http"
	"testing"
)

// seedIncome credits an account through the API so transfers have funds to move.
func (app *testApp) seedIncome(t *testing.T, token, accountID string, amount float64) {
	t.Helper()
	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"income","amount":%g}`, accountID, amount), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed income failed: %d %s", rec.Code, rec.Body.String())
	}
}

func (app *testApp) accountBalance(t *testing.T, token, accountID string) string {
	t.Helper()
	rec := app.request("GET", "/api/accounts/"+accountID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseData(t, rec)["balance"].(string)
}

func TestTransferFlow_SuccessfulTransfer(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "xfer@test.com", "password123")

	acctA := app.createAccount(t, token, "Account A", "checking", "USD")
	acctB := app.createAccount(t, token, "Account B", "savings", "USD")
	app.seedIncome(t, token, acctA, 200)
	app.seedIncome(t, token, acctB, 50)

	// Transfer 75 from A to B
	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"to_account_id":%q,"type":"transfer","amount":75,"description":"Rent money"}`,
			acctA, acctB), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	transfer := parseData(t, rec)
	transferID := transfer["id"].(string)
	if transfer["type"] != "transfer" {
		t.Errorf("expected type transfer, got %v", transfer["type"])
	}

	// A: 200 - 75, B: 50 + 75
	if balance := app.accountBalance(t, token, acctA); balance != "125" {
		t.Errorf("expected account A balance 125, got %s", balance)
	}
	if balance := app.accountBalance(t, token, acctB); balance != "125" {
		t.Errorf("expected account B balance 125, got %s", balance)
	}

	// The transfer shows up in both accounts' histories
	rec = app.request("GET", "/api/accounts/"+acctB+"/transactions", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if total := parseData(t, rec)["total_items"].(float64); total != 2 {
		t.Errorf("expected seed income and incoming transfer, got %v items", total)
	}

	// Deleting the transfer restores both balances
	rec = app.request("DELETE", "/api/transactions/"+transferID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d: %s", rec.Code, rec.Body.String())
	}
	if balance := app.accountBalance(t, token, acctA); balance != "200" {
		t.Errorf("expected account A balance 200 after delete, got %s", balance)
	}
	if balance := app.accountBalance(t, token, acctB); balance != "50" {
		t.Errorf("expected account B balance 50 after delete, got %s", balance)
	}
}

func TestTransferFlow_SameAccountRejected(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "same@test.com", "password123")

	acct := app.createAccount(t, token, "Only Account", "checking", "USD")

	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"to_account_id":%q,"type":"transfer","amount":10}`, acct, acct), token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["message"] != "Cannot transfer to the same account" {
		t.Errorf("unexpected message: %v", result["message"])
	}
}

func TestTransferFlow_CurrencyMismatchRejected(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "mismatch@test.com", "password123")

	usd := app.createAccount(t, token, "USD Account", "checking", "USD")
	eur := app.createAccount(t, token, "EUR Account", "checking", "EUR")

	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"to_account_id":%q,"type":"transfer","amount":10}`, usd, eur), token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransferFlow_MissingDestinationRejected(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "nodest@test.com", "password123")

	acct := app.createAccount(t, token, "Lonely Account", "checking", "USD")

	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"transfer","amount":10}`, acct), token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransferFlow_MultipleTransfers(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "multi@test.com", "password123")

	acctA := app.createAccount(t, token, "A", "checking", "USD")
	acctB := app.createAccount(t, token, "B", "checking", "USD")
	acctC := app.createAccount(t, token, "C", "checking", "USD")
	app.seedIncome(t, token, acctA, 100)
	app.seedIncome(t, token, acctB, 50)

	transfer := func(from, to string, amount float64) {
		rec := app.request("POST", "/api/transactions",
			fmt.Sprintf(`{"account_id":%q,"to_account_id":%q,"type":"transfer","amount":%g}`, from, to, amount), token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("transfer failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	transfer(acctA, acctB, 30)
	transfer(acctB, acctC, 60)

	// A = 100-30, B = 50+30-60, C = 0+60
	if balance := app.accountBalance(t, token, acctA); balance != "70" {
		t.Errorf("expected A=70, got %s", balance)
	}
	if balance := app.accountBalance(t, token, acctB); balance != "20" {
		t.Errorf("expected B=20, got %s", balance)
	}
	if balance := app.accountBalance(t, token, acctC); balance != "60" {
		t.Errorf("expected C=60, got %s", balance)
	}
}
