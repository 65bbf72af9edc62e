package room

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func orderedEmails(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// ListOwned returns rooms owned by userID, newest first.
func (r *Repo) ListOwned(ctx context.Context, userID string) ([]Room, error) {
	var rooms []Room
	if err := r.db.WithContext(ctx).
		Preload("Emails", orderedEmails).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].expand()
	}
	return rooms, nil
}

// ListAccessible returns rooms not owned by userID where email is listed as
// an admin or a member.
func (r *Repo) ListAccessible(ctx context.Context, userID, email string) ([]Room, error) {
	listed := r.db.Model(&RoomEmail{}).
		Select("room_id").
		Where("email = ?", email)

	var rooms []Room
	if err := r.db.WithContext(ctx).
		Preload("Emails", orderedEmails).
		Where("user_id <> ? AND id IN (?)", userID, listed).
		Order("id DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].expand()
	}
	return rooms, nil
}

func (r *Repo) GetByID(ctx context.Context, roomID string) (*Room, error) {
	var rm Room
	if err := r.db.WithContext(ctx).
		Preload("Emails", orderedEmails).
		First(&rm, "id = ?", roomID).Error; err != nil {
		return nil, err
	}
	rm.expand()
	return &rm, nil
}

// HasAccess reports whether the user owns the room or is listed on it.
func (r *Repo) HasAccess(ctx context.Context, roomID, userID, email string) (bool, error) {
	var cnt int64
	q := r.db.WithContext(ctx).Model(&Room{}).Where("id = ?", roomID)
	if email != "" {
		listed := r.db.Model(&RoomEmail{}).Select("room_id").Where("room_id = ? AND email = ?", roomID, email)
		q = q.Where("user_id = ? OR id IN (?)", userID, listed)
	} else {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Create inserts the room and its email rows atomically.
func (r *Repo) Create(ctx context.Context, rm *Room) error {
	rm.flatten()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Emails").Create(rm).Error; err != nil {
			return err
		}
		if len(rm.Emails) == 0 {
			return nil
		}
		return tx.Create(&rm.Emails).Error
	})
}

// UpdateName renames a room. Returns gorm.ErrRecordNotFound when the id
// matched nothing.
func (r *Repo) UpdateName(ctx context.Context, roomID, name string) error {
	res := r.db.WithContext(ctx).Model(&Room{}).
		Where("id = ?", roomID).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
