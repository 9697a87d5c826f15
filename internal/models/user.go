package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role defines what an identity may do.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWorker Role = "worker"
)

// User represents a staff member. Workers own the invoices they create.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	FullName     string             `bson:"full_name" json:"full_name"`
	WorkerID     string             `bson:"worker_id" json:"worker_id"` // OPL-########, stored upper-case
	Role         Role               `bson:"role" json:"role"`
	Position     string             `bson:"position,omitempty" json:"position,omitempty"`
	Nationality  string             `bson:"nationality,omitempty" json:"nationality,omitempty"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	ImagePath    string             `bson:"image_path,omitempty" json:"image_path,omitempty"`
	PasswordHash string             `bson:"password,omitempty" json:"-"` // Store hash, not plaintext
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
