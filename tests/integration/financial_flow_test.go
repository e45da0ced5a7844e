package integration

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"testing"
)

func TestFinancialFlow_DashboardReflectsActivity(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "dash@test.com", "password123")

	accountID := app.createAccount(t, token, "Main", "checking", "USD")
	foodID := app.createCategory(t, token, "Food", "expense")

	app.seedIncome(t, token, accountID, 1000)
	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":400,"category_id":%q}`, accountID, foodID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/financial/dashboard", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	dashboard := parseData(t, rec)
	combined := dashboard["combined"].(map[string]interface{})

	if combined["total_income"] != "1000" {
		t.Errorf("expected income 1000, got %v", combined["total_income"])
	}
	if combined["total_expenses"] != "400" {
		t.Errorf("expected expenses 400, got %v", combined["total_expenses"])
	}
	if combined["net"] != "600" {
		t.Errorf("expected net 600, got %v", combined["net"])
	}

	top := combined["top_expense_categories"].([]interface{})
	if len(top) != 1 || top[0].(map[string]interface{})["name"] != "Food" {
		t.Errorf("expected Food as top category, got %v", top)
	}

	balances := combined["account_balances"].([]interface{})
	if len(balances) != 1 {
		t.Fatalf("expected 1 account balance, got %d", len(balances))
	}
	if balances[0].(map[string]interface{})["balance"] != "600" {
		t.Errorf("expected balance 600, got %v", balances[0])
	}

	recent := dashboard["recent_transactions"].([]interface{})
	if len(recent) != 2 {
		t.Errorf("expected 2 recent transactions, got %d", len(recent))
	}
}

func TestFinancialFlow_MonthlyReport(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "report@test.com", "password123")

	accountID := app.createAccount(t, token, "Main", "checking", "USD")
	app.seedIncome(t, token, accountID, 500)
	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":200}`, accountID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/financial/report", `{"report_type":"monthly"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	report := parseData(t, rec)
	if report["report_type"] != "monthly" {
		t.Errorf("expected monthly, got %v", report["report_type"])
	}
	combined := report["combined"].(map[string]interface{})
	summary := combined["summary"].(map[string]interface{})
	if summary["net"] != "300" {
		t.Errorf("expected net 300, got %v", summary["net"])
	}
	trend := combined["trend"].([]interface{})
	if len(trend) < 28 {
		t.Errorf("expected a daily bucket per day of the month, got %d", len(trend))
	}

	// Unknown report types are rejected
	rec = app.request("POST", "/api/financial/report", `{"report_type":"weekly"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFinancialFlow_SummaryAndInsights(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "insight@test.com", "password123")

	accountID := app.createAccount(t, token, "Main", "checking", "USD")
	app.seedIncome(t, token, accountID, 100)
	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":250}`, accountID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/financial/summary", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	summary := parseData(t, rec)
	if summary["net"] != "-150" {
		t.Errorf("expected net -150, got %v", summary["net"])
	}
	counts := summary["counts_by_type"].(map[string]interface{})
	if counts["expense"].(float64) != 1 {
		t.Errorf("expected 1 expense, got %v", counts["expense"])
	}

	// Spending above income triggers an alert
	rec = app.request("GET", "/api/financial/insights", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	insights := result["data"].([]interface{})
	if len(insights) == 0 {
		t.Fatal("expected at least one insight")
	}
	first := insights[0].(map[string]interface{})
	if first["code"] != "expenses_exceed_income" {
		t.Errorf("expected overspending alert first, got %v", first["code"])
	}
}

func TestFinancialFlow_CSVExportRoundTrip(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "export@test.com", "password123")

	accountID := app.createAccount(t, token, "Main", "checking", "USD")
	app.seedIncome(t, token, accountID, 75)

	rec := app.request("POST", "/api/financial/export", `{"format":"csv"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" {
		t.Error("expected an attachment disposition")
	}

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus 1 row, got %d", len(records))
	}
	if records[1][2] != "income" || records[1][4] != "75" {
		t.Errorf("unexpected row: %v", records[1])
	}

	// Unsupported formats are rejected
	rec = app.request("POST", "/api/financial/export", `{"format":"yaml"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFinancialFlow_RecurringRunMaterializesTransactions(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "recur@test.com", "password123")

	accountID := app.createAccount(t, token, "Main", "checking", "USD")

	rec := app.request("POST", "/api/recurring",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":9.99,"frequency":"monthly","description":"Streaming"}`, accountID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recurring failed: %d %s", rec.Code, rec.Body.String())
	}

	// The scheduler endpoint requires the API key, not a user token
	rec = app.request("POST", "/api/internal/recurring/run", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d: %s", rec.Code, rec.Body.String())
	}

	recRun := app.requestWithAPIKey("POST", "/api/internal/recurring/run", testCronAPIKey)
	if recRun.Code != http.StatusOK {
		t.Fatalf("run failed: %d %s", recRun.Code, recRun.Body.String())
	}
	runResult := parseData(t, recRun)
	if runResult["created"].(float64) != 1 {
		t.Errorf("expected 1 materialized transaction, got %v", runResult["created"])
	}

	// The materialized transaction is visible to the user
	rec = app.request("GET", "/api/transactions", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	page := parseData(t, rec)
	if page["total_items"].(float64) != 1 {
		t.Fatalf("expected 1 transaction, got %v", page["total_items"])
	}
	tx := page["items"].([]interface{})[0].(map[string]interface{})
	if tx["is_recurring"] != true {
		t.Error("expected is_recurring true")
	}
	if tx["amount"] != "9.99" {
		t.Errorf("expected amount 9.99, got %v", tx["amount"])
	}
}
