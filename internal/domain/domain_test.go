package domain

import (
	"testing"
	"time"

	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

func TestProperty_IsAvailable(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{"disponible", true},
		{"Disponible ", true},
		{"", true},
		{"no_disponible", false},
		{"arrendado", false},
	}

	for _, tt := range tests {
		p := Property{Status: tt.status}
		if got := p.IsAvailable(); got != tt.expected {
			t.Errorf("IsAvailable(%q) = %v, expected %v", tt.status, got, tt.expected)
		}
	}
}

func TestProperty_CodeDigits(t *testing.T) {
	p := Property{Code: "COD-012"}
	if got := p.CodeDigits(); got != "012" {
		t.Errorf("expected 012, got %s", got)
	}
}

func TestPropertyType_NeedsBedrooms(t *testing.T) {
	tests := map[PropertyType]bool{
		PropertyTypeHouse:      true,
		PropertyTypeApartment:  true,
		PropertyTypeStudio:     false,
		PropertyTypeCommercial: false,
	}
	for pt, want := range tests {
		if got := pt.NeedsBedrooms(); got != want {
			t.Errorf("%s.NeedsBedrooms() = %v, expected %v", pt, got, want)
		}
	}
	if PropertyType("bodega").Valid() {
		t.Error("bodega should not be a valid type")
	}
}

func TestSession_Reset(t *testing.T) {
	s := NewSession("sub-1", "Laura")
	s.Stage = StageAwaitingRooms
	s.Filters = SearchFilters{Type: PropertyTypeApartment, MaxRent: 2000000}
	s.LastPropertyCode = "101"
	s.History = []ChatMessage{{Role: RoleUser, Content: "hola"}}

	s.Reset()

	if s.ID != "sub-1" || s.UserName != "Laura" {
		t.Error("reset must keep the session identity")
	}
	if s.Stage != StageIdle {
		t.Errorf("expected idle stage, got %q", s.Stage)
	}
	if !s.Filters.IsZero() || s.LastPropertyCode != "" || s.History != nil {
		t.Errorf("expected cleared state, got %+v", s)
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("sub-1", "")
	s.History = []ChatMessage{{Role: RoleUser, Content: "hola"}}

	c := s.Clone()
	c.History[0].Content = "changed"
	c.Stage = StageMenu

	if s.History[0].Content != "hola" {
		t.Error("clone shares the history backing array")
	}
	if s.Stage != StageIdle {
		t.Error("clone shares scalar state")
	}
	var nilSession *Session
	if nilSession.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}

func TestSession_AppendHistory(t *testing.T) {
	s := NewSession("sub-1", "")
	for i := 0; i < 3; i++ {
		s.AppendHistory(4,
			ChatMessage{Role: RoleUser, Content: "q"},
			ChatMessage{Role: RoleAssistant, Content: "a"},
		)
	}
	if len(s.History) != 4 {
		t.Fatalf("expected history capped at 4, got %d", len(s.History))
	}
	if s.History[0].Role != RoleUser {
		t.Errorf("expected oldest kept turn to be a user turn, got %s", s.History[0].Role)
	}

	s.AppendHistory(0, ChatMessage{Role: RoleUser, Content: "q"})
	if s.History != nil {
		t.Error("limit 0 should drop history")
	}
}

func TestLead_Validate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		lead    func() *Lead
		wantErr bool
	}{
		{
			name: "advisor needs only session",
			lead: func() *Lead { return NewLead(LeadKindAdvisor, "sub-1", now) },
		},
		{
			name:    "visit without phone",
			lead:    func() *Lead { return NewLead(LeadKindVisit, "sub-1", now) },
			wantErr: true,
		},
		{
			name: "complete consignment",
			lead: func() *Lead {
				l := NewLead(LeadKindConsignment, "sub-1", now)
				l.Name, l.Phone, l.AskingPrice = "Carlos", "3001234567", 1500000
				return l
			},
		},
		{
			name: "consignment without price",
			lead: func() *Lead {
				l := NewLead(LeadKindConsignment, "sub-1", now)
				l.Name, l.Phone = "Carlos", "3001234567"
				return l
			},
			wantErr: true,
		},
		{
			name:    "missing session",
			lead:    func() *Lead { return NewLead(LeadKindAdvisor, "", now) },
			wantErr: true,
		},
		{
			name:    "unknown kind",
			lead:    func() *Lead { return NewLead(LeadKind("spam"), "sub-1", now) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lead().Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.IsUserError(err) {
				t.Errorf("expected a user error, got %v", err)
			}
		})
	}
}

func TestNewLead(t *testing.T) {
	now := time.Date(2024, 5, 1, 7, 0, 0, 0, time.FixedZone("COT", -5*3600))
	l := NewLead(LeadKindVisit, "sub-1", now)

	if l.ID.String() == "" {
		t.Error("expected lead ID to be generated")
	}
	if l.CreatedAt.Location() != time.UTC {
		t.Error("expected CreatedAt in UTC")
	}
}
