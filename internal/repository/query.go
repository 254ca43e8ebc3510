// Package repository persists leads in PostgreSQL or in memory.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	listTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// table renders the SQL fragments shared by the queries on one table.
type table struct {
	name    string
	columns []string
}

// LeadColumns lists the leads table columns in scan order.
var LeadColumns = table{
	name: "leads",
	columns: []string{
		"id", "kind", "session_id", "name", "phone", "address",
		"property_type", "asking_price", "property_code", "notes", "created_at",
	},
}

// Select returns the column list.
func (t table) Select() string {
	return strings.Join(t.columns, ", ")
}

// InsertQuery returns an INSERT binding every column in order.
func (t table) InsertQuery() string {
	var ph strings.Builder
	for i := range t.columns {
		if i > 0 {
			ph.WriteString(", ")
		}
		fmt.Fprintf(&ph, "$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, t.Select(), ph.String())
}

// bounded applies timeout unless ctx already ends sooner.
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
