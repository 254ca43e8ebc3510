package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

// LeadKind is what the contact asked a human for.
type LeadKind string

const (
	// LeadKindConsignment is an owner offering a property to the agency.
	LeadKindConsignment LeadKind = "consignacion"
	// LeadKindVisit is a visit request for a listing.
	LeadKindVisit LeadKind = "visita"
	// LeadKindAdvisor is a plain handoff to an advisor.
	LeadKindAdvisor LeadKind = "asesor"
)

// Lead is a contact handed to the sales team.
type Lead struct {
	ID           uuid.UUID    `json:"id"`
	Kind         LeadKind     `json:"kind"`
	SessionID    string       `json:"session_id"`
	Name         string       `json:"name,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	PropertyType PropertyType `json:"property_type,omitempty"`
	AskingPrice  int64        `json:"asking_price,omitempty"`
	PropertyCode string       `json:"property_code,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewLead creates a lead with a fresh id.
func NewLead(kind LeadKind, sessionID string, now time.Time) *Lead {
	return &Lead{
		ID:        uuid.New(),
		Kind:      kind,
		SessionID: sessionID,
		CreatedAt: now.UTC(),
	}
}

// Validate checks the fields each kind requires.
func (l *Lead) Validate() error {
	if l.SessionID == "" {
		return apperrors.MissingField("session_id")
	}
	switch l.Kind {
	case LeadKindConsignment:
		if l.Name == "" {
			return apperrors.MissingField("name")
		}
		if l.Phone == "" {
			return apperrors.MissingField("phone")
		}
		if l.AskingPrice <= 0 {
			return apperrors.ValidationFailed("asking price must be positive")
		}
	case LeadKindVisit:
		if l.Phone == "" {
			return apperrors.MissingField("phone")
		}
	case LeadKindAdvisor:
	default:
		return apperrors.ValidationFailed("unknown lead kind: " + string(l.Kind))
	}
	return nil
}
