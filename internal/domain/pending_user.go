package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingUser is a registration awaiting email confirmation.
type PendingUser struct {
	ID                       uuid.UUID
	Email                    string
	Name                     string
	HashedPassword           string
	VerificationToken        string
	VerificationTokenExpires time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (p *PendingUser) Expired(now time.Time) bool {
	return p.VerificationTokenExpires.Before(now)
}
