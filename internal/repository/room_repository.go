package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

// RoomRepository reads examination rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// GetByID returns one room.
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, name, capacity, available FROM rooms WHERE id = $1 LIMIT 1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, wrapStoreErr("get room", err)
	}
	return &room, nil
}

// ListAvailable returns every room flagged available, ordered by name.
func (r *RoomRepository) ListAvailable(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, available FROM rooms WHERE available = TRUE ORDER BY name ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, wrapStoreErr("list available rooms", err)
	}
	return rooms, nil
}
