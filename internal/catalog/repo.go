package catalog

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/internal/repo"
	"github.com/bookhive/bookhive-backend/pkg/db"
	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/pagination"
)

// Repository persists categories and service offerings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateCategory(ctx context.Context, category *models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)

	CreateService(ctx context.Context, service *models.ServiceOffering) error
	FindService(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error)
	DeactivateService(ctx context.Context, id, providerID uuid.UUID) (bool, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error)
	ListActiveByCategory(ctx context.Context, categoryID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error)

	ProviderUsesCategory(ctx context.Context, providerID, categoryID uuid.UUID) (bool, error)
	CountActiveInCategory(ctx context.Context, providerID, categoryID uuid.UUID) (int64, error)
	ApplyRating(ctx context.Context, id uuid.UUID, rating int) error
}

type repository struct {
	repo.Base
}

// NewRepository builds the GORM-backed catalog repository.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) CreateCategory(ctx context.Context, category *models.Category) error {
	if err := r.DB(ctx).Create(category).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return errors.New(errors.CodeConflict, "category name already exists")
		}
		return errors.Wrap(errors.CodeInternal, err, "creating category")
	}
	return nil
}

func (r *repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.DB(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing categories")
	}
	return categories, nil
}

func (r *repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := r.DB(ctx).Where("id = ?", id).First(&category).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "category not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "fetching category")
	}
	return &category, nil
}

func (r *repository) CreateService(ctx context.Context, service *models.ServiceOffering) error {
	if err := r.DB(ctx).Create(service).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating service offering")
	}
	return nil
}

func (r *repository) FindService(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error) {
	var service models.ServiceOffering
	err := r.DB(ctx).Where("id = ?", id).First(&service).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "service offering not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "fetching service offering")
	}
	return &service, nil
}

// DeactivateService flips the active flag off. The guard on active means
// double deactivation reports false and never double-decrements counters.
func (r *repository) DeactivateService(ctx context.Context, id, providerID uuid.UUID) (bool, error) {
	result := r.DB(ctx).
		Model(&models.ServiceOffering{}).
		Where("id = ? AND provider_id = ? AND active", id, providerID).
		Updates(map[string]any{
			"active":     false,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Wrap(errors.CodeInternal, result.Error, "deactivating service offering")
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByProvider(ctx context.Context, providerID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error) {
	return r.list(ctx, params, "provider_id = ?", providerID)
}

func (r *repository) ListActiveByCategory(ctx context.Context, categoryID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error) {
	return r.list(ctx, params, "category_id = ? AND active", categoryID)
}

func (r *repository) list(ctx context.Context, params pagination.Params, cond string, args ...any) ([]models.ServiceOffering, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	query := r.DB(ctx).
		Where(cond, args...).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var services []models.ServiceOffering
	if err := query.Find(&services).Error; err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing service offerings")
	}
	return services, nil
}

// ProviderUsesCategory reports whether the provider has any active service
// in the category. Feeds the distinct-category limit check.
func (r *repository) ProviderUsesCategory(ctx context.Context, providerID, categoryID uuid.UUID) (bool, error) {
	count, err := r.CountActiveInCategory(ctx, providerID, categoryID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CountActiveInCategory(ctx context.Context, providerID, categoryID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.ServiceOffering{}).
		Where("provider_id = ? AND category_id = ? AND active", providerID, categoryID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "counting services in category")
	}
	return count, nil
}

// ApplyRating folds one rating into the running aggregate in a single
// statement. Both expressions see the pre-update column values, so
// concurrent ratings serialize on the row and none are lost.
func (r *repository) ApplyRating(ctx context.Context, id uuid.UUID, rating int) error {
	result := r.DB(ctx).
		Model(&models.ServiceOffering{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"rating_average": gorm.Expr("(rating_average * rating_count + ?) / (rating_count + 1)", rating),
			"rating_count":   gorm.Expr("rating_count + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return errors.Wrap(errors.CodeInternal, result.Error, "updating service rating")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.CodeNotFound, "service offering not found")
	}
	return nil
}
