package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/refit/refit-api/models"
	"github.com/refit/refit-api/utils"
)

const catalogCachePrefix = "cache:objectives:list:"

// Cache is the subset of a key/value cache the catalog needs.
type Cache interface {
	GetBytes(key string) ([]byte, bool)
	SetJSON(key string, v interface{}, ttl time.Duration)
	InvalidatePrefix(prefix string)
}

// ObjectiveInput carries a definition create or patch. Nil fields are left untouched on patch.
type ObjectiveInput struct {
	Name          *string               `json:"name"`
	Description   *string               `json:"description"`
	Kind          *models.ObjectiveKind `json:"kind"`
	Requirement   *string               `json:"requirement"`
	RequiredValue *int64                `json:"required_value"`
	Prize         *int64                `json:"prize"`
	Active        *bool                 `json:"active"`
}

// CatalogService manages objective definitions. Definitions are never deleted.
type CatalogService struct {
	db    *gorm.DB
	cache Cache
}

// NewCatalogService creates a CatalogService; cache may be nil.
func NewCatalogService(db *gorm.DB, cache Cache) *CatalogService {
	return &CatalogService{db: db, cache: cache}
}

// List returns definitions, optionally only active ones.
func (s *CatalogService) List(ctx context.Context, activeOnly bool) ([]models.ObjectiveDefinition, error) {
	key := fmt.Sprintf("%sactive=%t", catalogCachePrefix, activeOnly)
	if s.cache != nil {
		if b, ok := s.cache.GetBytes(key); ok {
			var cached []models.ObjectiveDefinition
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
		}
	}

	q := s.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	defs := []models.ObjectiveDefinition{}
	if err := q.Find(&defs).Error; err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetJSON(key, defs, 10*time.Minute)
	}
	return defs, nil
}

// Get returns one definition.
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.ObjectiveDefinition, error) {
	def, err := findDefinition(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// Create validates and stores a new definition. Active defaults to true.
func (s *CatalogService) Create(ctx context.Context, in ObjectiveInput) (*models.ObjectiveDefinition, error) {
	def := models.ObjectiveDefinition{Active: true}
	applyInput(&def, in)
	if err := validateDefinition(def); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&def).Error; err != nil {
		return nil, err
	}
	s.invalidate()
	return &def, nil
}

// Update patches an existing definition and re-validates the result.
func (s *CatalogService) Update(ctx context.Context, id uint, in ObjectiveInput) (*models.ObjectiveDefinition, error) {
	db := s.db.WithContext(ctx)
	def, err := findDefinition(db, id)
	if err != nil {
		return nil, err
	}
	applyInput(&def, in)
	if err := validateDefinition(def); err != nil {
		return nil, err
	}
	if err := db.Save(&def).Error; err != nil {
		return nil, err
	}
	s.invalidate()
	return &def, nil
}

func (s *CatalogService) invalidate() {
	if s.cache != nil {
		s.cache.InvalidatePrefix(catalogCachePrefix)
	}
}

func applyInput(def *models.ObjectiveDefinition, in ObjectiveInput) {
	if in.Name != nil {
		def.Name = utils.SanitizeText(*in.Name)
	}
	if in.Description != nil {
		def.Description = utils.Sanitize(*in.Description)
	}
	if in.Kind != nil {
		def.Kind = models.ObjectiveKind(strings.ToLower(string(*in.Kind)))
	}
	if in.Requirement != nil {
		def.Requirement = strings.TrimSpace(*in.Requirement)
	}
	if in.RequiredValue != nil {
		def.RequiredValue = *in.RequiredValue
	}
	if in.Prize != nil {
		def.Prize = *in.Prize
	}
	if in.Active != nil {
		def.Active = *in.Active
	}
	if def.Kind == models.ObjectiveQualitative {
		def.RequiredValue = 0
	}
}

func validateDefinition(def models.ObjectiveDefinition) error {
	switch {
	case def.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidObjective)
	case !def.Kind.Valid():
		return fmt.Errorf("%w: kind must be quantitative or qualitative", ErrInvalidObjective)
	case def.Requirement == "":
		return fmt.Errorf("%w: requirement is required", ErrInvalidObjective)
	case def.Prize <= 0:
		return fmt.Errorf("%w: prize must be positive", ErrInvalidObjective)
	}
	if def.Kind == models.ObjectiveQuantitative {
		if !KnownMetric(def.Requirement) {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalidObjective, def.Requirement)
		}
		if def.RequiredValue <= 0 {
			return fmt.Errorf("%w: required_value must be positive", ErrInvalidObjective)
		}
	}
	return nil
}
