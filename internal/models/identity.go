package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Identity is the authenticated caller every core operation acts on behalf of.
type Identity struct {
	UserID primitive.ObjectID
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// IsZero reports whether the identity carries no user.
func (i Identity) IsZero() bool {
	return i.UserID.IsZero()
}

func IdentityOf(u *User) Identity {
	return Identity{UserID: u.ID, Role: u.Role}
}
