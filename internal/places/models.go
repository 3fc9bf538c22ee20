package places

import (
	"time"

	"github.com/graffic/roombot/internal/room"
)

// Place is a named teleport destination
type Place struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"` // stored lower-cased
	X         float64   `gorm:"not null" json:"x"`
	Y         float64   `gorm:"not null" json:"y"`
	Z         float64   `gorm:"not null" json:"z"`
	Facing    string    `gorm:"not null" json:"facing"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Place
func (Place) TableName() string {
	return "place"
}

// Position returns where the place is
func (p Place) Position() room.Position {
	return room.Position{X: p.X, Y: p.Y, Z: p.Z, Facing: p.Facing}
}
