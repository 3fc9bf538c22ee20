package owners

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/graffic/roombot/internal/room"
	"gorm.io/gorm"
)

// Store handles persistence of bot owners
type Store struct {
	db *gorm.DB
}

// NewStore creates a new owner store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// IsOwner reports whether user is a bot owner. An owner stored by name only
// matches on username and gets its user id recorded; an owner stored by id
// only gets its username recorded.
func (s *Store) IsOwner(ctx context.Context, user room.User) (bool, error) {
	if user.ID == "" {
		return false, nil
	}

	var owner Owner
	err := s.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		First(&owner).Error
	if err == nil {
		if owner.Username == "" && user.Username != "" {
			if err := s.db.WithContext(ctx).Model(&owner).Update("username", user.Username).Error; err != nil {
				return false, fmt.Errorf("failed to record owner name: %w", err)
			}
		}
		return true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up owner: %w", err)
	}

	if user.Username == "" {
		return false, nil
	}

	err = s.db.WithContext(ctx).
		Where("user_id = ? AND LOWER(username) = ?", "", strings.ToLower(user.Username)).
		First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up owner: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&owner).Update("user_id", user.ID).Error; err != nil {
		return false, fmt.Errorf("failed to record owner id: %w", err)
	}
	return true, nil
}

// Add stores user as an owner. It returns false when the user already is one.
// An empty user.ID stores the owner by name only.
func (s *Store) Add(ctx context.Context, user room.User) (bool, error) {
	added := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		username := strings.ToLower(user.Username)
		query := tx.Model(&Owner{})
		switch {
		case user.ID != "" && username != "":
			query = query.Where("user_id = ? OR LOWER(username) = ?", user.ID, username)
		case user.ID != "":
			query = query.Where("user_id = ?", user.ID)
		case username != "":
			query = query.Where("LOWER(username) = ?", username)
		default:
			return errors.New("owner needs a user id or a username")
		}

		var count int64
		if err := query.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if err := tx.Create(&Owner{UserID: user.ID, Username: user.Username}).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to add owner: %w", err)
	}
	return added, nil
}

// Remove deletes the owner with the given username, ignoring case and a
// leading '@'. It returns the removed owner and false when none matched.
func (s *Store) Remove(ctx context.Context, username string) (Owner, bool, error) {
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	if username == "" {
		return Owner{}, false, nil
	}

	var owner Owner
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = ?", username).
		First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Owner{}, false, nil
	}
	if err != nil {
		return Owner{}, false, fmt.Errorf("failed to look up owner: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&owner).Error; err != nil {
		return Owner{}, false, fmt.Errorf("failed to remove owner: %w", err)
	}
	return owner, true, nil
}

// List returns every owner in the order they were added
func (s *Store) List(ctx context.Context) ([]Owner, error) {
	var owners []Owner
	if err := s.db.WithContext(ctx).Order("id").Find(&owners).Error; err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

// Seed makes sure every user id in ids is an owner
func (s *Store) Seed(ctx context.Context, ids []string) error {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		owner := Owner{UserID: id}
		if err := s.db.WithContext(ctx).Where(Owner{UserID: id}).FirstOrCreate(&owner).Error; err != nil {
			return fmt.Errorf("failed to seed owner %s: %w", id, err)
		}
	}
	return nil
}
