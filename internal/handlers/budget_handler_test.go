package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

type mockBudgetService struct {
	createBudgetFn            func(userID, categoryID, name string, amount decimal.Decimal, period models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error)
	getUserBudgetsFn          func(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn           func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn            func(userID, budgetID, name string, amount *decimal.Decimal, period *models.BudgetPeriod, endDate *time.Time) (*models.Budget, error)
	deleteBudgetFn            func(userID, budgetID string) error
	getBudgetProgressFn       func(userID, budgetID string) (*services.BudgetProgress, error)
	getActiveBudgetProgressFn func(userID string, period *models.BudgetPeriod) ([]services.BudgetProgress, error)
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func (m *mockBudgetService) CreateBudget(userID, categoryID, name string, amount decimal.Decimal, period models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, categoryID, name, amount, period, startDate, endDate)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, isActive, period)
	}
	return &pagination.PageResponse[models.Budget]{}, nil
}

func (m *mockBudgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(userID, budgetID, name string, amount *decimal.Decimal, period *models.BudgetPeriod, endDate *time.Time) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, name, amount, period, endDate)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(userID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) GetBudgetProgress(userID, budgetID string) (*services.BudgetProgress, error) {
	if m.getBudgetProgressFn != nil {
		return m.getBudgetProgressFn(userID, budgetID)
	}
	return &services.BudgetProgress{}, nil
}

func (m *mockBudgetService) GetActiveBudgetProgress(userID string, period *models.BudgetPeriod) ([]services.BudgetProgress, error) {
	if m.getActiveBudgetProgressFn != nil {
		return m.getActiveBudgetProgressFn(userID, period)
	}
	return nil, nil
}

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("/api", injectUserID(testUserID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetUserBudgets)
	auth.GET("/budgets/:id", handler.GetBudgetByID)
	auth.GET("/budgets/:id/progress", handler.GetBudgetProgress)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(userID, categoryID, name string, amount decimal.Decimal, period models.BudgetPeriod, _ time.Time, _ *time.Time) (*models.Budget, error) {
				return &models.Budget{
					Base:       models.Base{ID: "bud-1"},
					UserID:     userID,
					CategoryID: categoryID,
					Name:       name,
					Amount:     amount,
					Period:     period,
					IsActive:   true,
				}, nil
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		body := fmt.Sprintf(`{"category_id":%q,"name":"Groceries","amount":"500","period":"monthly"}`, testCategoryID)
		rec := doRequest(r, "POST", "/api/budgets", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		data := parseData(t, rec)
		if data["name"] != "Groceries" {
			t.Errorf("expected Groceries, got %v", data["name"])
		}
	})

	t.Run("parses start and end dates", func(t *testing.T) {
		var gotStart time.Time
		var gotEnd *time.Time
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(_, _, _ string, _ decimal.Decimal, _ models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error) {
				gotStart, gotEnd = startDate, endDate
				return &models.Budget{}, nil
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		body := fmt.Sprintf(`{"category_id":%q,"name":"G","amount":"500","period":"monthly","start_date":"2026-06-01","end_date":"2026-12-01"}`, testCategoryID)
		rec := doRequest(r, "POST", "/api/budgets", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotStart.IsZero() || gotStart.Month() != time.June {
			t.Errorf("expected June start date, got %s", gotStart)
		}
		if gotEnd == nil || gotEnd.Month() != time.December {
			t.Error("expected December end date")
		}
	})

	t.Run("returns 400 on invalid period", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		body := fmt.Sprintf(`{"category_id":%q,"name":"G","amount":"500","period":"daily"}`, testCategoryID)
		rec := doRequest(r, "POST", "/api/budgets", body)
		assertErrorEnvelope(t, rec, http.StatusBadRequest)
	})

	t.Run("returns 404 when category missing", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(_, _, _ string, _ decimal.Decimal, _ models.BudgetPeriod, _ time.Time, _ *time.Time) (*models.Budget, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		body := fmt.Sprintf(`{"category_id":%q,"name":"G","amount":"500","period":"monthly"}`, testCategoryID)
		rec := doRequest(r, "POST", "/api/budgets", body)
		assertErrorEnvelope(t, rec, http.StatusNotFound)
	})
}

func TestBudgetHandler_GetUserBudgets(t *testing.T) {
	t.Run("passes period filter to service", func(t *testing.T) {
		var gotPeriod *models.BudgetPeriod
		budgetSvc := &mockBudgetService{
			getUserBudgetsFn: func(_ string, _ pagination.PageRequest, _ *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
				gotPeriod = period
				return &pagination.PageResponse[models.Budget]{}, nil
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/api/budgets?period=weekly", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotPeriod == nil || *gotPeriod != models.BudgetPeriodWeekly {
			t.Error("expected weekly period filter to reach the service")
		}
	})

	t.Run("returns 400 on invalid period", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/api/budgets?period=fortnightly", "")
		assertErrorEnvelope(t, rec, http.StatusBadRequest)
	})
}

func TestBudgetHandler_GetBudgetProgress(t *testing.T) {
	t.Run("returns progress", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getBudgetProgressFn: func(_, budgetID string) (*services.BudgetProgress, error) {
				return &services.BudgetProgress{
					BudgetID:   budgetID,
					Name:       "Groceries",
					Budgeted:   decimal.NewFromInt(100),
					Spent:      decimal.NewFromInt(75),
					Remaining:  decimal.NewFromInt(25),
					Percentage: 75,
				}, nil
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/api/budgets/bud-1/progress", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := parseData(t, rec)
		if data["spent"] != "75" {
			t.Errorf("expected spent 75, got %v", data["spent"])
		}
		if data["percentage"] != float64(75) {
			t.Errorf("expected percentage 75, got %v", data["percentage"])
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getBudgetProgressFn: func(_, _ string) (*services.BudgetProgress, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "GET", "/api/budgets/missing/progress", "")
		assertErrorEnvelope(t, rec, http.StatusNotFound)
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			updateBudgetFn: func(_, budgetID, name string, amount *decimal.Decimal, _ *models.BudgetPeriod, _ *time.Time) (*models.Budget, error) {
				b := &models.Budget{Base: models.Base{ID: budgetID}, Name: name}
				if amount != nil {
					b.Amount = *amount
				}
				return b, nil
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "PUT", "/api/budgets/bud-1", `{"name":"Renamed","amount":"250"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := parseData(t, rec)
		if data["name"] != "Renamed" {
			t.Errorf("expected Renamed, got %v", data["name"])
		}
	})

	t.Run("returns 400 on bad end date", func(t *testing.T) {
		handler := NewBudgetHandler(&mockBudgetService{}, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "PUT", "/api/budgets/bud-1", `{"end_date":"eventually"}`)
		assertErrorEnvelope(t, rec, http.StatusBadRequest)
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			updateBudgetFn: func(_, _, _ string, _ *decimal.Decimal, _ *models.BudgetPeriod, _ *time.Time) (*models.Budget, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "PUT", "/api/budgets/missing", `{"name":"X"}`)
		assertErrorEnvelope(t, rec, http.StatusNotFound)
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		var deletedID string
		budgetSvc := &mockBudgetService{
			deleteBudgetFn: func(_, budgetID string) error {
				deletedID = budgetID
				return nil
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "DELETE", "/api/budgets/bud-1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if deletedID != "bud-1" {
			t.Errorf("expected bud-1 deleted, got %s", deletedID)
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			deleteBudgetFn: func(_, _ string) error {
				return apperrors.ErrBudgetNotFound
			},
		}
		handler := NewBudgetHandler(budgetSvc, &mockAuditService{})
		r := setupBudgetRouter(handler)

		rec := doRequest(r, "DELETE", "/api/budgets/missing", "")
		assertErrorEnvelope(t, rec, http.StatusNotFound)
	})
}
