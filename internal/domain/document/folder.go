package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyFolderName indicates a folder created without a name
var ErrEmptyFolderName = errors.New("folder name cannot be empty")

// Folder groups documents; assignment is many-to-many
type Folder struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFolder creates a folder owned by the given user
func NewFolder(userID uuid.UUID, name string) (*Folder, error) {
	if name == "" {
		return nil, ErrEmptyFolderName
	}
	return &Folder{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}, nil
}
