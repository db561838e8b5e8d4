package parser

import (
	"errors"
	"testing"

	"github.com/aluiziolira/go-wayback-appstats/models"
	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		want        models.Stat
		wantMissing []string
	}{
		{
			name:    "both fields",
			content: `<li><span class="label">Updated:</span>Jan 05, 2021</li><li><span class="label">Size:</span>123.4 MB</li>`,
			want:    models.Stat{UpdatedDate: "Jan 05, 2021", AppSize: "123.4 MB"},
		},
		{
			name:    "single digit day",
			content: "Updated Mar 7, 2016 Size 98.12 MB",
			want:    models.Stat{UpdatedDate: "Mar 7, 2016", AppSize: "98.12 MB"},
		},
		{
			name:    "first match wins",
			content: "Feb 01, 2019 Mar 02, 2019 10.0 MB 20.0 MB",
			want:    models.Stat{UpdatedDate: "Feb 01, 2019", AppSize: "10.0 MB"},
		},
		{
			name:        "missing size",
			content:     "Jan 05, 2021 and 123 MB",
			wantMissing: []string{FieldAppSize},
		},
		{
			name:        "missing date",
			content:     "jan 05, 2021 123.4 MB",
			wantMissing: []string{FieldUpdatedDate},
		},
		{
			name:        "missing both",
			content:     "<html></html>",
			wantMissing: []string{FieldUpdatedDate, FieldAppSize},
		},
		{
			name:        "dot is literal",
			content:     "Jan 05, 2021 123x4 MB",
			wantMissing: []string{FieldAppSize},
		},
	}

	e := DefaultExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(tt.content)
			if tt.wantMissing != nil {
				var missing *ErrFieldMissing
				if !errors.As(err, &missing) {
					t.Fatalf("expected ErrFieldMissing, got %v", err)
				}
				if diff := cmp.Diff(tt.wantMissing, missing.Fields); diff != "" {
					t.Fatalf("missing fields mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("stat mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewExtractorCustomPatterns(t *testing.T) {
	e, err := NewExtractor(`\d{4}-\d{2}-\d{2}`, `(?P<app_size>\d+) KB`)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	got, err := e.Extract("released 2021-01-05, weighs 512 KB")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := models.Stat{UpdatedDate: "2021-01-05", AppSize: "512"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stat mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewExtractor(`(`, DefaultSizePattern); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}
