package utils

import (
	"github.com/google/uuid"
)

// GenerateUUIDv7 genera un UUID v7 (ordenable por tiempo).
//
// Si el generador falla se cae a un UUID v4.
func GenerateUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
