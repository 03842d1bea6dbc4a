package callbell

import (
	"errors"
	"testing"
	"time"
)

func TestAccessTokenValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token AccessToken
		want  bool
	}{
		{"live token", AccessToken{Token: "tok", ExpiresOn: now.Add(time.Hour)}, true},
		{"expired token", AccessToken{Token: "tok", ExpiresOn: now.Add(-time.Second)}, false},
		{"expires exactly now", AccessToken{Token: "tok", ExpiresOn: now}, false},
		{"empty token", AccessToken{ExpiresOn: now.Add(time.Hour)}, false},
		{"zero value", AccessToken{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableEmpty(t *testing.T) {
	var nilTable *Table
	if !nilTable.Empty() {
		t.Error("nil table should be empty")
	}
	if !(&Table{Columns: []Column{{Name: "a", Type: "INT"}}}).Empty() {
		t.Error("table with columns but no rows should be empty")
	}
	if (&Table{Rows: [][]any{{1}}}).Empty() {
		t.Error("table with a row should not be empty")
	}
}

func TestTableColumnNames(t *testing.T) {
	tbl := &Table{Columns: []Column{
		{Name: "incident_id", Type: "INT"},
		{Name: "home", Type: "NVARCHAR(200)"},
	}}
	got := tbl.ColumnNames()
	want := []string{"incident_id", "home"}
	if len(got) != len(want) {
		t.Fatalf("got %d names, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRowSetLenNil(t *testing.T) {
	var rs *RowSet
	if rs.Len() != 0 {
		t.Errorf("nil RowSet Len() = %d, want 0", rs.Len())
	}
}

func TestQueryConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     QueryConfig
		wantErr bool
	}{
		{"complete", QueryConfig{Server: "s.database.windows.net", Database: "care_reporting"}, false},
		{"missing server", QueryConfig{Database: "care_reporting"}, true},
		{"missing database", QueryConfig{Server: "s.database.windows.net"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v should wrap ErrInvalidConfig", err)
			}
		})
	}
}
