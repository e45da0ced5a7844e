package integration

import (
	"fmt"
	"net/http"
	"testing"
)

// createCategory creates a category through the API and returns its ID.
func (app *testApp) createCategory(t *testing.T, token, name, categoryType string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q}`, name, categoryType)
	rec := app.request("POST", "/api/categories", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseData(t, rec)["id"].(string)
}

// createBudget creates a monthly budget through the API and returns its ID.
func (app *testApp) createBudget(t *testing.T, token, categoryID, name string, amount float64) string {
	t.Helper()
	body := fmt.Sprintf(`{"category_id":%q,"name":%q,"amount":%g,"period":"monthly"}`, categoryID, name, amount)
	rec := app.request("POST", "/api/budgets", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create budget failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseData(t, rec)["id"].(string)
}

func TestBudgetFlow_CreateAndCheckProgress(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "budget@test.com", "password123")

	categoryID := app.createCategory(t, token, "Groceries", "expense")
	accountID := app.createAccount(t, token, "Checking", "checking", "USD")
	budgetID := app.createBudget(t, token, categoryID, "Grocery Budget", 200)

	// Progress before any spending
	rec := app.request("GET", "/api/budgets/"+budgetID+"/progress", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progress := parseData(t, rec)
	if progress["spent"] != "0" {
		t.Errorf("expected 0 spent before transactions, got %v", progress["spent"])
	}
	if progress["remaining"] != "200" {
		t.Errorf("expected 200 remaining, got %v", progress["remaining"])
	}
	if progress["percentage"].(float64) != 0 {
		t.Errorf("expected 0%% spent, got %v", progress["percentage"])
	}

	// Two expenses in the current month against the category
	for _, amount := range []string{"80", "50"} {
		rec = app.request("POST", "/api/transactions",
			fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":%s,"category_id":%q}`, accountID, amount, categoryID), token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	// 130 of 200 spent
	rec = app.request("GET", "/api/budgets/"+budgetID+"/progress", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progress = parseData(t, rec)
	if progress["spent"] != "130" {
		t.Errorf("expected 130 spent, got %v", progress["spent"])
	}
	if progress["remaining"] != "70" {
		t.Errorf("expected 70 remaining, got %v", progress["remaining"])
	}
	if progress["percentage"].(float64) != 65 {
		t.Errorf("expected 65%%, got %v", progress["percentage"])
	}
}

func TestBudgetFlow_SubcategorySpendingCounts(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "subbudget@test.com", "password123")

	parentID := app.createCategory(t, token, "Food", "expense")
	accountID := app.createAccount(t, token, "Wallet", "cash", "USD")

	// Child category under the budgeted parent
	rec := app.request("POST", "/api/categories",
		fmt.Sprintf(`{"name":"Restaurants","type":"expense","parent_id":%q}`, parentID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create child category failed: %d %s", rec.Code, rec.Body.String())
	}
	childID := parseData(t, rec)["id"].(string)

	budgetID := app.createBudget(t, token, parentID, "Food Budget", 100)

	rec = app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":40,"category_id":%q}`, accountID, childID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/budgets/"+budgetID+"/progress", "", token)
	progress := parseData(t, rec)
	if progress["spent"] != "40" {
		t.Errorf("expected descendant spending to count, got %v", progress["spent"])
	}
}

func TestBudgetFlow_OverBudget(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "overbudget@test.com", "password123")

	categoryID := app.createCategory(t, token, "Dining", "expense")
	accountID := app.createAccount(t, token, "Wallet", "cash", "USD")
	budgetID := app.createBudget(t, token, categoryID, "Dining Budget", 50)

	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"expense","amount":75,"category_id":%q}`, accountID, categoryID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/budgets/"+budgetID+"/progress", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progress := parseData(t, rec)
	if progress["spent"] != "75" {
		t.Errorf("expected 75 spent, got %v", progress["spent"])
	}
	if progress["remaining"] != "-25" {
		t.Errorf("expected -25 remaining, got %v", progress["remaining"])
	}
	if progress["percentage"].(float64) != 150 {
		t.Errorf("expected 150%%, got %v", progress["percentage"])
	}

	// The overage also shows up in the budget analysis rollup
	rec = app.request("GET", "/api/financial/budget-analysis", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	analysis := parseData(t, rec)
	if analysis["over_budget"].(float64) != 1 {
		t.Errorf("expected 1 over budget, got %v", analysis["over_budget"])
	}
}

func TestBudgetFlow_CRUDOperations(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "budgetcrud@test.com", "password123")

	categoryID := app.createCategory(t, token, "Utilities", "expense")
	budgetID := app.createBudget(t, token, categoryID, "Utility Budget", 150)

	// Get budget
	rec := app.request("GET", "/api/budgets/"+budgetID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	budget := parseData(t, rec)
	if budget["name"] != "Utility Budget" {
		t.Errorf("expected name 'Utility Budget', got %v", budget["name"])
	}

	// Update budget name and amount
	rec = app.request("PUT", "/api/budgets/"+budgetID,
		`{"name":"Updated Utilities","amount":200}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := parseData(t, rec)
	if updated["name"] != "Updated Utilities" {
		t.Errorf("expected name 'Updated Utilities', got %v", updated["name"])
	}
	if updated["amount"] != "200" {
		t.Errorf("expected amount 200, got %v", updated["amount"])
	}

	// List budgets
	rec = app.request("GET", "/api/budgets", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if total := parseData(t, rec)["total_items"].(float64); total != 1 {
		t.Errorf("expected 1 budget in list, got %v", total)
	}

	// Delete budget
	rec = app.request("DELETE", "/api/budgets/"+budgetID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Verify deleted (should 404)
	rec = app.request("GET", "/api/budgets/"+budgetID, "", token)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after deletion, got %d", rec.Code)
	}
}

func TestBudgetFlow_IncomeIgnored(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "budgetincome@test.com", "password123")

	expenseCategoryID := app.createCategory(t, token, "Side Projects", "expense")
	incomeCategoryID := app.createCategory(t, token, "Side Income", "income")
	accountID := app.createAccount(t, token, "Cash", "cash", "USD")
	budgetID := app.createBudget(t, token, expenseCategoryID, "Project Budget", 100)

	// Income never counts towards spending
	rec := app.request("POST", "/api/transactions",
		fmt.Sprintf(`{"account_id":%q,"type":"income","amount":50,"category_id":%q}`, accountID, incomeCategoryID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/budgets/"+budgetID+"/progress", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if spent := parseData(t, rec)["spent"]; spent != "0" {
		t.Errorf("expected 0 spent, got %v", spent)
	}
}

func TestBudgetFlow_IncomeCategoryRejected(t *testing.T) {
	app := setupApp(t)
	token, _ := app.registerUser(t, "budgetreject@test.com", "password123")

	incomeCategoryID := app.createCategory(t, token, "Salary", "income")

	body := fmt.Sprintf(`{"category_id":%q,"name":"Bad Budget","amount":100,"period":"monthly"}`, incomeCategoryID)
	rec := app.request("POST", "/api/budgets", body, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for income category, got %d: %s", rec.Code, rec.Body.String())
	}
}
