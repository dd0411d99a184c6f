package services

import (
	"context"
	"errors"
	"fmt"

	"content-unlock-service/models"

	"gorm.io/gorm"
)

// Catalog is the read-only content catalog collaborator.
type Catalog interface {
	Lookup(ctx context.Context, itemID int64) (*models.CatalogItem, error)
	List(ctx context.Context) ([]models.CatalogItem, error)
}

// CatalogService reads the local catalog_items mirror.
type CatalogService struct {
	*Store
}

func NewCatalogService(st *Store) *CatalogService {
	return &CatalogService{Store: st}
}

// Lookup returns ErrUnknownItem when the item is not in the catalog.
func (s *CatalogService) Lookup(ctx context.Context, itemID int64) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("item_id = ?", itemID).First(&item).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownItem
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup %d: %w", itemID, err)
	}
	return &item, nil
}

// List returns the whole catalog ordered by id.
func (s *CatalogService) List(ctx context.Context) ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Order("item_id ASC").Find(&items).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return items, nil
}
