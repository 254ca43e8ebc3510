package database

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_visits.up.sql":          {Data: []byte("CREATE TABLE visits ();")},
		"m/002_leads.up.sql":           {Data: []byte("CREATE TABLE leads ();")},
		"m/001_chat_sessions.up.sql":   {Data: []byte("CREATE TABLE chat_sessions ();")},
		"m/001_chat_sessions.down.sql": {Data: []byte("DROP TABLE chat_sessions;")},
		"m/README.md":                  {Data: []byte("notes")},
	}

	got, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(got))
	}
	for i, v := range want {
		if got[i].version != v {
			t.Errorf("position %d: expected version %d, got %d", i, v, got[i].version)
		}
	}
	if got[1].sql != "CREATE TABLE leads ();" {
		t.Errorf("unexpected sql %q", got[1].sql)
	}
}

func TestLoadMigrations_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{"no version", fstest.MapFS{"m/leads.up.sql": {}}, "positive version"},
		{"not numeric", fstest.MapFS{"m/abc_leads.up.sql": {}}, "positive version"},
		{"zero", fstest.MapFS{"m/000_leads.up.sql": {}}, "positive version"},
		{"duplicate", fstest.MapFS{"m/001_a.up.sql": {}, "m/001_b.up.sql": {}}, "share version 1"},
		{"missing dir", fstest.MapFS{}, "read migrations directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.fsys, "m")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := loadMigrations(embeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("expected chat_sessions and leads migrations, got %d", len(got))
	}
	if !strings.Contains(got[0].sql, "chat_sessions") {
		t.Errorf("expected first migration to create chat_sessions, got %q", got[0].name)
	}
}
