package domain

import (
	"time"
)

// Stage is the guided step a conversation is in. The zero value is idle.
type Stage string

const (
	StageIdle           Stage = ""
	StageMenu           Stage = "menu"
	StageAwaitingCode   Stage = "awaiting_code"
	StageAwaitingType   Stage = "awaiting_type"
	StageAwaitingBudget Stage = "awaiting_budget"
	StageAwaitingRooms  Stage = "awaiting_rooms"
	StageSellerName     Stage = "seller_name"
	StageSellerPhone    Stage = "seller_phone"
	StageSellerAddress  Stage = "seller_address"
	StageSellerType     Stage = "seller_type"
	StageSellerPrice    Stage = "seller_price"
	StageVisitContact   Stage = "visit_contact"
	StageFeeAmount      Stage = "fee_amount"
)

// ChatMessage roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn kept for the LLM fallback.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SellerDraft accumulates the seller onboarding answers.
type SellerDraft struct {
	Name         string       `json:"name,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	PropertyType PropertyType `json:"property_type,omitempty"`
	AskingPrice  int64        `json:"asking_price,omitempty"`
}

// Session is the per-contact conversation state.
type Session struct {
	ID               string        `json:"id"`
	UserName         string        `json:"user_name,omitempty"`
	Stage            Stage         `json:"stage"`
	Filters          SearchFilters `json:"filters"`
	LastIntent       string        `json:"last_intent,omitempty"`
	LastPropertyCode string        `json:"last_property_code,omitempty"`
	Seller           SellerDraft   `json:"seller"`
	History          []ChatMessage `json:"history,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewSession creates an idle session.
func NewSession(id, userName string) *Session {
	return &Session{
		ID:       id,
		UserName: userName,
		Stage:    StageIdle,
	}
}

// Reset clears all conversation state but keeps the identity.
func (s *Session) Reset() {
	*s = Session{ID: s.ID, UserName: s.UserName, UpdatedAt: s.UpdatedAt}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.History != nil {
		c.History = append([]ChatMessage(nil), s.History...)
	}
	return &c
}

// AppendHistory adds turns and keeps only the newest limit messages. limit <= 0 keeps none.
func (s *Session) AppendHistory(limit int, msgs ...ChatMessage) {
	if limit <= 0 {
		s.History = nil
		return
	}
	s.History = append(s.History, msgs...)
	if over := len(s.History) - limit; over > 0 {
		s.History = append([]ChatMessage(nil), s.History[over:]...)
	}
}
