package repository

import (
	"photoreviver/internal/dto"
	"photoreviver/internal/model"
)

// RestorationRepository defines the interface for restoration history operations.
type RestorationRepository interface {
	// Create operations
	Insert(r *model.Restoration) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Restoration, error)
	GetByUID(uid string) (*model.Restoration, error)
	GetAll(filter *dto.RestorationFilters) ([]model.Restoration, error)
	GetTotalCount(filter *dto.RestorationFilters) (int, error)
	ExistsByFilename(filename string) (bool, error)
	Stats() (*model.RestorationStats, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}
