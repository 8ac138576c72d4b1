package config

import (
	"fmt"
	"strings"

	"github.com/ecohealthalliance/birt-consumer/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the settings (e.g. "collections.nodes").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate statically checks a Settings value and returns all findings.
// Callers decide whether warnings block.
func Validate(s Settings) []Issue {
	var issues []Issue

	if s.ChunkSize <= 0 {
		issues = append(issues, Issue{SeverityError, "chunk_size",
			fmt.Sprintf("must be > 0, got %d", s.ChunkSize)})
	}
	if len(s.AllowedExtensions) == 0 {
		issues = append(issues, Issue{SeverityError, "allowed_extensions",
			"must not be empty"})
	}
	for i, ext := range s.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			issues = append(issues, Issue{SeverityError,
				fmt.Sprintf("allowed_extensions[%d]", i),
				fmt.Sprintf("%q must start with a dot", ext)})
		}
	}

	if _, err := schema.Layout(s.DateFormat); err != nil {
		issues = append(issues, Issue{SeverityError, "date_format", err.Error()})
	}

	for path, name := range map[string]string{
		"collections.nodes":   s.Collections.Nodes,
		"collections.paths":   s.Collections.Paths,
		"collections.invalid": s.Collections.Invalid,
	} {
		if strings.TrimSpace(name) == "" {
			issues = append(issues, Issue{SeverityError, path, "must not be empty"})
		}
	}
	if s.Collections.Invalid == s.Collections.Nodes || s.Collections.Invalid == s.Collections.Paths {
		issues = append(issues, Issue{SeverityWarning, "collections.invalid",
			"shares a name with a data collection; rejected rows will mix with records"})
	}

	if strings.TrimSpace(s.Mongo.Host) == "" {
		issues = append(issues, Issue{SeverityError, "mongo.host", "must not be empty"})
	}
	if strings.TrimSpace(s.Mongo.Database) == "" {
		issues = append(issues, Issue{SeverityError, "mongo.database", "must not be empty"})
	}
	if s.Mongo.Password != "" && s.Mongo.Username == "" {
		issues = append(issues, Issue{SeverityWarning, "mongo.username",
			"password set without a username"})
	}

	if s.ChunkSize > 100000 {
		issues = append(issues, Issue{SeverityWarning, "chunk_size",
			fmt.Sprintf("%d rows per batch may consume significant memory", s.ChunkSize)})
	}

	return issues
}
