package room

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Room is a shared document. Admins and Members are materialized from
// room_emails; the owner email is always among Admins.
type Room struct {
	ID          string    `gorm:"primaryKey;size:26" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"Name"`
	Description string    `gorm:"type:text" json:"Description"`
	UserID      string    `gorm:"type:varchar(191);index;not null" json:"userId"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Emails []RoomEmail `gorm:"foreignKey:RoomID" json:"-"`

	Admins  []string `gorm:"-" json:"Admins"`
	Members []string `gorm:"-" json:"Members"`
}

func (Room) TableName() string { return "rooms" }

type RoomEmail struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	RoomID string `gorm:"size:26;not null;index;uniqueIndex:uniq_room_email_role,priority:1"`
	Email  string `gorm:"type:varchar(191);not null;index;uniqueIndex:uniq_room_email_role,priority:2"`
	Role   string `gorm:"type:varchar(16);not null;uniqueIndex:uniq_room_email_role,priority:3"`
}

func (RoomEmail) TableName() string { return "room_emails" }

// expand fills Admins/Members from the loaded email rows.
func (r *Room) expand() {
	r.Admins = []string{}
	r.Members = []string{}
	for _, e := range r.Emails {
		switch e.Role {
		case RoleAdmin:
			r.Admins = append(r.Admins, e.Email)
		case RoleMember:
			r.Members = append(r.Members, e.Email)
		}
	}
}

// flatten builds email rows from Admins/Members.
func (r *Room) flatten() {
	r.Emails = make([]RoomEmail, 0, len(r.Admins)+len(r.Members))
	for _, e := range r.Admins {
		r.Emails = append(r.Emails, RoomEmail{RoomID: r.ID, Email: e, Role: RoleAdmin})
	}
	for _, e := range r.Members {
		r.Emails = append(r.Emails, RoomEmail{RoomID: r.ID, Email: e, Role: RoleMember})
	}
}

// Models lists the tables owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&Room{}, &RoomEmail{}}
}
