package config

import (
	"strings"
	"testing"
)

func hasIssue(issues []Issue, severity IssueSeverity, path string) bool {
	for _, iss := range issues {
		if iss.Severity == severity && iss.Path == path {
			return true
		}
	}
	return false
}

func TestValidateDefaultsClean(t *testing.T) {
	t.Parallel()

	for _, iss := range Validate(Default()) {
		if iss.Severity == SeverityError {
			t.Fatalf("default settings produced an error: %v", iss)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Settings)
		severity IssueSeverity
		path     string
	}{
		{
			name:     "zero chunk size",
			mutate:   func(s *Settings) { s.ChunkSize = 0 },
			severity: SeverityError,
			path:     "chunk_size",
		},
		{
			name:     "huge chunk size warns",
			mutate:   func(s *Settings) { s.ChunkSize = 500000 },
			severity: SeverityWarning,
			path:     "chunk_size",
		},
		{
			name:     "no extensions",
			mutate:   func(s *Settings) { s.AllowedExtensions = nil },
			severity: SeverityError,
			path:     "allowed_extensions",
		},
		{
			name:     "extension without dot",
			mutate:   func(s *Settings) { s.AllowedExtensions = []string{"csv"} },
			severity: SeverityError,
			path:     "allowed_extensions[0]",
		},
		{
			name:     "bad date format",
			mutate:   func(s *Settings) { s.DateFormat = "%Q" },
			severity: SeverityError,
			path:     "date_format",
		},
		{
			name:     "empty collection name",
			mutate:   func(s *Settings) { s.Collections.Paths = " " },
			severity: SeverityError,
			path:     "collections.paths",
		},
		{
			name:     "invalid collection collides",
			mutate:   func(s *Settings) { s.Collections.Invalid = "birds" },
			severity: SeverityWarning,
			path:     "collections.invalid",
		},
		{
			name:     "empty host",
			mutate:   func(s *Settings) { s.Mongo.Host = "" },
			severity: SeverityError,
			path:     "mongo.host",
		},
		{
			name:     "password without username",
			mutate:   func(s *Settings) { s.Mongo.Password = "secret" },
			severity: SeverityWarning,
			path:     "mongo.username",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := Default()
			tt.mutate(&s)
			issues := Validate(s)
			if !hasIssue(issues, tt.severity, tt.path) {
				t.Fatalf("issues = %v, want %s at %s", issues, tt.severity, tt.path)
			}
		})
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()

	iss := Issue{SeverityError, "mongo.host", "must not be empty"}
	if got := iss.Error(); !strings.Contains(got, "mongo.host") {
		t.Fatalf("Error() = %q", got)
	}
}
