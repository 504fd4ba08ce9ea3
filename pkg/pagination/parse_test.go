package pagination

import (
	"testing"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantURLs    []string
		wantSkipped int
		expectError bool
	}{
		{
			name:     "two photos",
			body:     `[{"id":"a","urls":{"regular":"https://img/1"}},{"id":"b","urls":{"regular":"https://img/2"}}]`,
			wantURLs: []string{"https://img/1", "https://img/2"},
		},
		{
			name:        "object without urls is skipped",
			body:        `[{"id":"a"},{"id":"b","urls":{"regular":"https://img/2"}}]`,
			wantURLs:    []string{"https://img/2"},
			wantSkipped: 1,
		},
		{
			name:        "empty regular is skipped",
			body:        `[{"id":"a","urls":{"regular":""}},{"id":"b","urls":{"small":"https://img/s"}}]`,
			wantURLs:    []string{},
			wantSkipped: 2,
		},
		{
			name:        "relative url is skipped",
			body:        `[{"id":"a","urls":{"regular":"/img/1"}}]`,
			wantURLs:    []string{},
			wantSkipped: 1,
		},
		{
			name:        "malformed object is skipped",
			body:        `[42,"x",null,{"id":"b","urls":{"regular":"https://img/2"}}]`,
			wantURLs:    []string{"https://img/2"},
			wantSkipped: 3,
		},
		{
			name:     "empty array",
			body:     `[]`,
			wantURLs: []string{},
		},
		{
			name:        "object document",
			body:        `{"errors":["OAuth error"]}`,
			expectError: true,
		},
		{
			name:        "invalid json",
			body:        `[{"id":`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, skipped, err := ParsePage([]byte(tt.body))
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
			if len(items) != len(tt.wantURLs) {
				t.Fatalf("len(items) = %d, want %d", len(items), len(tt.wantURLs))
			}
			for i, want := range tt.wantURLs {
				if items[i].ImageURL != want {
					t.Errorf("items[%d].ImageURL = %q, want %q", i, items[i].ImageURL, want)
				}
			}
		})
	}
}

func TestParsePage_GeneratesMissingID(t *testing.T) {
	items, _, err := ParsePage([]byte(`[{"urls":{"regular":"https://img/1"}},{"urls":{"regular":"https://img/1"}}]`))
	if err != nil {
		t.Fatalf("ParsePage() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ID == "" || items[1].ID == "" {
		t.Error("Expected generated ids for photos without id")
	}
	if items[0].ID == items[1].ID {
		t.Error("Generated ids should be distinct")
	}
}
