package models

import (
	"time"

	id "sns/pkg/domain"
)

// ReverseRecord is the default name an identity presents. Two identities may
// point at the same name; the pointer is not updated if the name changes hands.
type ReverseRecord struct {
	Owner     id.Identity `json:"owner"`
	Name      string      `json:"name"`
	UpdatedAt time.Time   `json:"updated_at"`
}
