package schema

import (
	"testing"
	"time"
)

func TestLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  string
		want    string
		wantErr bool
	}{
		{name: "month year", format: "%b %Y", want: "Jan 2006"},
		{name: "iso date", format: "%Y-%m-%d", want: "2006-01-02"},
		{name: "full month", format: "%B %d, %Y", want: "January 02, 2006"},
		{name: "time", format: "%H:%M:%S", want: "15:04:05"},
		{name: "day of year", format: "%Y %j", want: "2006 002"},
		{name: "literal percent", format: "%%%Y", want: "%2006"},
		{name: "go layout passthrough", format: "02.01.2006", want: "02.01.2006"},
		{name: "empty passthrough", format: "", want: ""},
		{name: "unsupported verb", format: "%Q", wantErr: true},
		{name: "trailing percent", format: "%Y%", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Layout(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Layout(%q) = %q, want error", tt.format, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Layout(%q) error = %v", tt.format, err)
			}
			if got != tt.want {
				t.Fatalf("Layout(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestLayoutParsesReferenceData(t *testing.T) {
	t.Parallel()

	layout, err := Layout("%b %Y")
	if err != nil {
		t.Fatalf("Layout error = %v", err)
	}
	d, err := time.ParseInLocation(layout, "Jan 2013", time.UTC)
	if err != nil {
		t.Fatalf("parse %q with %q: %v", "Jan 2013", layout, err)
	}
	if d.Year() != 2013 || d.Month() != time.January {
		t.Fatalf("parsed %v, want January 2013", d)
	}
}
