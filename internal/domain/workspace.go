package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Workspace anchors debounce and job records. Tenant isolation beyond this
// scoping (billing, membership, auth) is an external collaborator's concern;
// the scheduler core only needs the id to exist and be stable.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (w *Workspace) Validate() error {
	if w.Name == "" {
		return errors.New("workspace name cannot be empty")
	}
	if w.Slug == "" {
		return errors.New("workspace slug cannot be empty")
	}
	if !slugRegex.MatchString(w.Slug) {
		return errors.New("workspace slug must contain only lowercase letters, numbers and hyphens")
	}
	return nil
}
