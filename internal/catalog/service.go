package catalog

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive-backend/internal/entitlements"
	"github.com/bookhive/bookhive-backend/pkg/db/models"
	"github.com/bookhive/bookhive-backend/pkg/errors"
	"github.com/bookhive/bookhive-backend/pkg/logger"
	"github.com/bookhive/bookhive-backend/pkg/pagination"
)

// txRunner runs a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the category and service-offering catalog. Service
// creation consumes entitlement slots in the same transaction as the
// insert so limits hold under concurrent requests.
type Service interface {
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	CreateService(ctx context.Context, input CreateServiceInput) (*models.ServiceOffering, error)
	GetService(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error)
	DeactivateService(ctx context.Context, id, providerID uuid.UUID) error
	ListProviderServices(ctx context.Context, providerID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error)
	ListCategoryServices(ctx context.Context, categoryID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error)

	ApplyRating(ctx context.Context, tx *gorm.DB, serviceID uuid.UUID, rating int) error
}

type service struct {
	repo         Repository
	entitlements entitlements.Service
	tx           txRunner
	validate     *validator.Validate
	logger       *logger.Logger
}

// Params carries the catalog service dependencies.
type Params struct {
	Repo         Repository
	Entitlements entitlements.Service
	Tx           txRunner
	Logger       *logger.Logger
}

// NewService wires the catalog service.
func NewService(params Params) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlements service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	return &service{
		repo:         params.Repo,
		entitlements: params.Entitlements,
		tx:           params.Tx,
		validate:     validator.New(),
		logger:       params.Logger,
	}, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid category payload")
	}

	category := &models.Category{
		Name:    input.Name,
		IconURL: input.IconURL,
	}
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithField(ctx, "category_id", category.ID.String()), "category created")
	return category, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateService lists a new offering after claiming an entitlement slot.
// The slot claim and the insert commit or roll back together.
func (s *service) CreateService(ctx context.Context, input CreateServiceInput) (*models.ServiceOffering, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid service payload")
	}
	if !input.HourlyRate.GreaterThan(decimal.Zero) {
		return nil, errors.New(errors.CodeValidation, "hourly rate must be positive")
	}

	if _, err := s.repo.FindCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	offering := &models.ServiceOffering{
		ID:          uuid.New(),
		ProviderID:  input.ProviderID,
		CategoryID:  input.CategoryID,
		Title:       input.Title,
		Description: input.Description,
		HourlyRate:  input.HourlyRate,
		Active:      true,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		decision, err := s.entitlements.ConsumeServiceSlot(ctx, tx, input.ProviderID, input.CategoryID)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return entitlements.LimitError(decision)
		}
		return s.repo.WithTx(tx).CreateService(ctx, offering)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithProviderID(ctx, input.ProviderID.String()), "service offering created")
	return offering, nil
}

func (s *service) GetService(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error) {
	if id == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "service id required")
	}
	return s.repo.FindService(ctx, id)
}

// DeactivateService retires an offering and releases its entitlement
// slots. The category slot is only freed when no other active offering of
// this provider remains in the category.
func (s *service) DeactivateService(ctx context.Context, id, providerID uuid.UUID) error {
	if id == uuid.Nil || providerID == uuid.Nil {
		return errors.New(errors.CodeValidation, "service id and provider id required")
	}

	offering, err := s.repo.FindService(ctx, id)
	if err != nil {
		return err
	}
	if offering.ProviderID != providerID {
		return errors.New(errors.CodeForbidden, "service belongs to another provider")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		deactivated, err := txRepo.DeactivateService(ctx, id, providerID)
		if err != nil {
			return err
		}
		if !deactivated {
			return errors.New(errors.CodeStateConflict, "service already inactive")
		}

		remaining, err := txRepo.CountActiveInCategory(ctx, providerID, offering.CategoryID)
		if err != nil {
			return err
		}
		return s.entitlements.ReleaseServiceSlot(ctx, tx, providerID, remaining == 0)
	})
}

func (s *service) ListProviderServices(ctx context.Context, providerID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error) {
	if providerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "provider id required")
	}
	return s.repo.ListByProvider(ctx, providerID, params)
}

func (s *service) ListCategoryServices(ctx context.Context, categoryID uuid.UUID, params pagination.Params) ([]models.ServiceOffering, error) {
	if categoryID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "category id required")
	}
	return s.repo.ListActiveByCategory(ctx, categoryID, params)
}

// ApplyRating folds a completed-booking rating into the offering's running
// aggregate. Runs inside the caller's transaction; the fold itself happens
// in SQL so concurrent ratings never clobber each other.
func (s *service) ApplyRating(ctx context.Context, tx *gorm.DB, serviceID uuid.UUID, rating int) error {
	if rating < 1 || rating > 5 {
		return errors.New(errors.CodeValidation, "rating must be between 1 and 5")
	}

	txRepo := s.repo
	if tx != nil {
		txRepo = s.repo.WithTx(tx)
	}
	return txRepo.ApplyRating(ctx, serviceID, rating)
}
