package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// CategoryHandler handles category-related requests.
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// CreateCategoryRequest represents the request payload for creating a category.
type CreateCategoryRequest struct {
	Name        string              `json:"name" binding:"required,min=1,max=100"`
	Type        models.CategoryType `json:"type" binding:"required,category_type"`
	Description string              `json:"description" binding:"max=500"`
	Icon        string              `json:"icon" binding:"max=50"`
	Color       string              `json:"color" binding:"omitempty,hex_color"`
	ParentID    *string             `json:"parent_id" binding:"omitempty,uuid"`
}

// UpdateCategoryRequest represents the request payload for updating a
// category. ParentID distinguishes three cases: absent leaves the parent
// unchanged, an empty string moves the category to the root, and a UUID
// reparents it under that category.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Icon        *string `json:"icon" binding:"omitempty,max=50"`
	Color       *string `json:"color" binding:"omitempty,hex_color"`
	ParentID    *string `json:"parent_id"`
}

// CategoryResponse represents a category in the response.
type CategoryResponse struct {
	ID       string              `json:"id"`
	UserID   string              `json:"user_id"`
	Name     string              `json:"name"`
	Type     models.CategoryType `json:"type"`
	ParentID *string             `json:"parent_id"`
	Path     []string            `json:"path"`
	Level    int                 `json:"level"`
}

// CreateCategory handles the creation of a new category
// @Summary     Create a category
// @Description Create a new category, optionally under a parent of the same type
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} CategoryResponse "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate sibling name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	category, err := h.categoryService.CreateCategory(userID, req.Name, req.Type, req.Description, req.Icon, req.Color, req.ParentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_CATEGORY", "category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "type": string(category.Type)})

	respondData(c, http.StatusCreated, category)
}

// GetUserCategories handles the retrieval of categories for a user
// @Summary     Get user categories
// @Description Get a paginated list of categories for the authenticated user
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       type      query string false "Filter by category type (income or expense)"
// @Success     200 {object} pagination.PageResponse[models.Category] "Paginated categories"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories [get]
func (h *CategoryHandler) GetUserCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondBindingError(c, err)
		return
	}

	var categoryType *models.CategoryType
	if raw := c.Query("type"); raw != "" {
		t := models.CategoryType(raw)
		if t != models.CategoryTypeIncome && t != models.CategoryTypeExpense {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid category type"))
			return
		}
		categoryType = &t
	}

	result, err := h.categoryService.GetUserCategories(userID, page, categoryType)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

// GetCategoryTree returns the user's categories as nested trees.
// @Summary     Get category tree
// @Description Get all categories for the authenticated user as nested trees, roots first
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} services.CategoryNode "Category trees"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/tree [get]
func (h *CategoryHandler) GetCategoryTree(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tree, err := h.categoryService.GetCategoryTree(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, tree)
}

// GetCategoryStats returns aggregated transaction stats per category.
// @Summary     Get category statistics
// @Description Get per-category transaction counts and totals, with descendant activity rolled up into ancestors
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array} services.CategoryStats "Category statistics"
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/stats [get]
func (h *CategoryHandler) GetCategoryStats(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		from = &parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		end := endOfDay(parsed)
		to = &end
	}

	stats, err := h.categoryService.GetCategoryStats(userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, stats)
}

// GetCategoryByID handles the retrieval of a specific category
// @Summary     Get category by ID
// @Description Get a specific category by ID for the authenticated user
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} CategoryResponse "Category details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id} [get]
func (h *CategoryHandler) GetCategoryByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, category)
}

// UpdateCategory handles updating a category.
// @Summary     Update category
// @Description Update a category's fields or move it in the hierarchy. Moves rewrite descendant paths.
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Param       request body UpdateCategoryRequest true "Updated category details"
// @Success     200 {object} CategoryResponse "Updated category"
// @Failure     400 {object} ErrorResponse "Invalid input or illegal move"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Duplicate sibling name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	name, description, icon, color := "", "", "", ""
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.Icon != nil {
		icon = *req.Icon
	}
	if req.Color != nil {
		color = *req.Color
	}

	category, err := h.categoryService.UpdateCategory(userID, c.Param("id"), name, description, icon, color, req.ParentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_CATEGORY", "category", category.ID, c.ClientIP(), nil)

	respondData(c, http.StatusOK, category)
}

// DeleteCategory handles deleting a category.
// @Summary     Delete category
// @Description Delete a category; its children are promoted to the deleted category's parent
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} MessageResponse "Category deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID := c.Param("id")
	if err := h.categoryService.DeleteCategory(userID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_CATEGORY", "category", categoryID, c.ClientIP(), nil)

	respondMessage(c, http.StatusOK, "Category deleted successfully")
}
