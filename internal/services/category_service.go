package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// categoryService handles category-related business logic, including
// maintenance of the materialized ancestor path on every structural change.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category, optionally under a parent of the
// same type. Sibling names must be unique per user.
func (s *categoryService) CreateCategory(userID, name string, categoryType models.CategoryType, description, icon, color string, parentID *string) (*models.Category, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	category := &models.Category{
		UserID:      userID,
		Name:        name,
		Type:        categoryType,
		Description: description,
		Icon:        icon,
		Color:       color,
		Path:        models.StringSlice{},
		Level:       0,
	}

	if parentID != nil && *parentID != "" {
		parent, err := s.GetCategoryByID(userID, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.Type != categoryType {
			return nil, apperrors.ErrCategoryTypeMismatch
		}
		category.ParentID = &parent.ID
		category.Path = childPath(parent)
		category.Level = parent.Level + 1
	}

	exists, err := s.siblingExists(s.db, userID, category.ParentID, name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrDuplicateSibling
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves a paginated list of categories for a user,
// optionally filtered by type.
func (s *categoryService) GetUserCategories(userID string, page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.Model(&models.Category{}).Where("user_id = ?", userID)
	if categoryType != nil {
		base = base.Where("type = ?", *categoryType)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Order("level ASC, name ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory updates a category. Empty strings leave text fields
// unchanged. ParentID moves the category: nil means no change, the empty
// string moves it to the root, and any other value reparents it under that
// category. Renames and moves rewrite the paths of the whole subtree.
func (s *categoryService) UpdateCategory(userID, categoryID, name, description, icon, color string, parentID *string) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}

	newName := category.Name
	if name != "" {
		newName = name
	}

	newParentID := category.ParentID
	reparent := false
	var newParent *models.Category
	if parentID != nil {
		reparent = true
		if *parentID == "" {
			newParentID = nil
		} else {
			if *parentID == category.ID {
				return nil, apperrors.ErrSelfParentCategory
			}
			newParent, err = s.GetCategoryByID(userID, *parentID)
			if err != nil {
				return nil, err
			}
			if newParent.Type != category.Type {
				return nil, apperrors.ErrCategoryTypeMismatch
			}
			subtree, err := s.GetSubtreeIDs(userID, category.ID)
			if err != nil {
				return nil, err
			}
			for _, id := range subtree {
				if id == newParent.ID {
					return nil, apperrors.ErrCategoryCycle
				}
			}
			newParentID = &newParent.ID
		}
	}

	if newName != category.Name || reparent {
		exists, err := s.siblingExists(s.db, userID, newParentID, newName, category.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.ErrDuplicateSibling
		}
	}

	structural := newName != category.Name || reparent

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := make(map[string]interface{})
		if name != "" {
			updates["name"] = name
		}
		if description != "" {
			updates["description"] = description
		}
		if icon != "" {
			updates["icon"] = icon
		}
		if color != "" {
			updates["color"] = color
		}

		category.Name = newName
		if reparent {
			updates["parent_id"] = newParentID
			category.ParentID = newParentID
			if newParent != nil {
				category.Path = childPath(newParent)
				category.Level = newParent.Level + 1
			} else {
				category.Path = models.StringSlice{}
				category.Level = 0
			}
			updates["path"] = category.Path
			updates["level"] = category.Level
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Category{}).Where("id = ?", category.ID).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		if structural {
			return s.rebuildSubtree(tx, category)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload to get fresh data
	return s.GetCategoryByID(userID, categoryID)
}

// DeleteCategory soft-deletes a category. Its direct children are
// reparented to the deleted category's parent and every descendant's path
// and level are recomputed. Budgets attached to the category are
// soft-deleted with it; transactions keep their category reference.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var children []models.Category
		if err := tx.Where("user_id = ? AND parent_id = ?", userID, category.ID).Find(&children).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		var grandparent *models.Category
		if category.ParentID != nil {
			grandparent, err = s.GetCategoryByID(userID, *category.ParentID)
			if err != nil {
				return err
			}
		}

		for i := range children {
			child := &children[i]
			child.ParentID = category.ParentID
			if grandparent != nil {
				child.Path = childPath(grandparent)
				child.Level = grandparent.Level + 1
			} else {
				child.Path = models.StringSlice{}
				child.Level = 0
			}
			if err := tx.Model(&models.Category{}).Where("id = ?", child.ID).Updates(map[string]interface{}{
				"parent_id": child.ParentID,
				"path":      child.Path,
				"level":     child.Level,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := s.rebuildSubtree(tx, child); err != nil {
				return err
			}
		}

		if err := tx.Where("category_id = ?", category.ID).Delete(&models.Budget{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// GetCategoryTree returns the user's categories as a forest of nodes with
// children resolved, ordered by name at each level.
func (s *categoryService) GetCategoryTree(userID string) ([]*CategoryNode, error) {
	var categories []models.Category
	if err := s.db.Where("user_id = ?", userID).Order("level ASC, name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	nodes := make(map[string]*CategoryNode, len(categories))
	for i := range categories {
		nodes[categories[i].ID] = &CategoryNode{Category: categories[i], Children: []*CategoryNode{}}
	}

	roots := []*CategoryNode{}
	for i := range categories {
		node := nodes[categories[i].ID]
		if categories[i].ParentID != nil {
			if parent, ok := nodes[*categories[i].ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	return roots, nil
}

// GetCategoryStats aggregates transaction counts and per-currency totals
// per category over an optional date range. Each category's stats include
// all of its descendants. Failed and cancelled transactions are excluded.
func (s *categoryService) GetCategoryStats(userID string, from, to *time.Time) ([]CategoryStats, error) {
	var categories []models.Category
	if err := s.db.Where("user_id = ?", userID).Order("level ASC, name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	type row struct {
		CategoryID string
		Currency   string
		Amount     decimal.Decimal
	}
	q := s.db.Table("transactions").
		Select("category_id, currency, amount").
		Where("user_id = ? AND category_id IS NOT NULL AND deleted_at IS NULL", userID).
		Where("status IN ?", []models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusCompleted})
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if to != nil {
		q = q.Where("date <= ?", *to)
	}
	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	direct := make(map[string]*CategoryStats, len(categories))
	children := make(map[string][]string)
	for i := range categories {
		c := &categories[i]
		direct[c.ID] = &CategoryStats{
			CategoryID: c.ID,
			Name:       c.Name,
			Type:       c.Type,
			Path:       c.Path,
			Level:      c.Level,
			Totals:     map[string]decimal.Decimal{},
		}
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	for _, r := range rows {
		stats, ok := direct[r.CategoryID]
		if !ok {
			continue // transaction references a deleted category
		}
		stats.TransactionCount++
		stats.Totals[r.Currency] = stats.Totals[r.Currency].Add(r.Amount)
	}

	// Roll descendants up into their ancestors, deepest first.
	var rollup func(id string) *CategoryStats
	rollup = func(id string) *CategoryStats {
		stats := direct[id]
		for _, childID := range children[id] {
			childStats := rollup(childID)
			stats.TransactionCount += childStats.TransactionCount
			for currency, amount := range childStats.Totals {
				stats.Totals[currency] = stats.Totals[currency].Add(amount)
			}
		}
		return stats
	}

	results := make([]CategoryStats, 0, len(categories))
	for i := range categories {
		if categories[i].ParentID == nil {
			rollup(categories[i].ID)
		}
	}
	for i := range categories {
		results = append(results, *direct[categories[i].ID])
	}

	return results, nil
}

// GetSubtreeIDs returns the IDs of a category and all of its descendants.
func (s *categoryService) GetSubtreeIDs(userID, categoryID string) ([]string, error) {
	if _, err := s.GetCategoryByID(userID, categoryID); err != nil {
		return nil, err
	}

	children, err := s.loadChildrenIDs(s.db, userID)
	if err != nil {
		return nil, err
	}

	ids := []string{categoryID}
	queue := []string{categoryID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, childID := range children[current] {
			ids = append(ids, childID)
			queue = append(queue, childID)
		}
	}

	return ids, nil
}

// childPath returns the materialized path of a direct child of parent.
func childPath(parent *models.Category) models.StringSlice {
	path := make(models.StringSlice, 0, len(parent.Path)+1)
	path = append(path, parent.Path...)
	return append(path, parent.Name)
}

// siblingExists reports whether another live category with the same name
// exists under the same parent for the user.
func (s *categoryService) siblingExists(db *gorm.DB, userID string, parentID *string, name, excludeID string) (bool, error) {
	q := db.Model(&models.Category{}).Where("user_id = ? AND name = ?", userID, name)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// loadChildrenIDs loads the parent -> children adjacency for all of the
// user's live categories in a single query.
func (s *categoryService) loadChildrenIDs(db *gorm.DB, userID string) (map[string][]string, error) {
	type edge struct {
		ID       string
		ParentID *string
	}
	var edges []edge
	if err := db.Model(&models.Category{}).
		Select("id, parent_id").
		Where("user_id = ?", userID).
		Scan(&edges).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	children := make(map[string][]string, len(edges))
	for _, e := range edges {
		if e.ParentID != nil {
			children[*e.ParentID] = append(children[*e.ParentID], e.ID)
		}
	}
	return children, nil
}

// rebuildSubtree recomputes path and level for every descendant of root.
// The root itself must already carry its final name, path, and level.
func (s *categoryService) rebuildSubtree(tx *gorm.DB, root *models.Category) error {
	var categories []models.Category
	if err := tx.Where("user_id = ?", root.UserID).Find(&categories).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byParent := make(map[string][]*models.Category)
	for i := range categories {
		c := &categories[i]
		if c.ParentID != nil {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
		}
	}

	var walk func(node *models.Category) error
	walk = func(node *models.Category) error {
		path := childPath(node)
		for _, child := range byParent[node.ID] {
			child.Path = path
			child.Level = node.Level + 1
			if err := tx.Model(&models.Category{}).Where("id = ?", child.ID).Updates(map[string]interface{}{
				"path":  child.Path,
				"level": child.Level,
			}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(root)
}
