package places

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/graffic/roombot/internal/room"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store handles persistence of places
type Store struct {
	db *gorm.DB
}

// NewStore creates a new place store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Normalize returns the stored form of a place name
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Save creates the place or moves an existing one with the same name
func (s *Store) Save(ctx context.Context, name string, pos room.Position, createdBy string) (*Place, error) {
	place := Place{
		Name:      Normalize(name),
		X:         pos.X,
		Y:         pos.Y,
		Z:         pos.Z,
		Facing:    pos.Facing,
		CreatedBy: createdBy,
	}
	if place.Facing == "" {
		place.Facing = room.DefaultFacing
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"x", "y", "z", "facing", "created_by", "updated_at"}),
	}).Create(&place).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save place %q: %w", place.Name, err)
	}
	return &place, nil
}

// Get returns the place called name, or false when there is none
func (s *Store) Get(ctx context.Context, name string) (*Place, bool, error) {
	var place Place
	err := s.db.WithContext(ctx).Where("name = ?", Normalize(name)).First(&place).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get place: %w", err)
	}
	return &place, true, nil
}

// Delete removes the place called name. It returns false when there was none.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	result := s.db.WithContext(ctx).Where("name = ?", Normalize(name)).Delete(&Place{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete place: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Names returns every place name in alphabetical order
func (s *Store) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&Place{}).Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	return names, nil
}
