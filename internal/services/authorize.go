package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opalpixel/invoicing/internal/models"
)

// authorize is the single ownership check every invoice and receipt operation
// goes through. Admins may act on anything, workers only on what they own.
func authorize(identity models.Identity, ownerID primitive.ObjectID) error {
	if identity.IsZero() {
		return ErrForbidden
	}
	if identity.IsAdmin() {
		return nil
	}
	if identity.Role == models.RoleWorker && identity.UserID == ownerID {
		return nil
	}
	return ErrForbidden
}

func requireAdmin(identity models.Identity) error {
	if identity.IsZero() || !identity.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
