package dberr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewAndIs(t *testing.T) {
	err := New(CodeNameCollision, "batch %q already exists", "run-001")

	if !Is(err, CodeNameCollision) {
		t.Errorf("expected Is to match the error's own code")
	}
	if Is(err, CodeCorrupted) {
		t.Errorf("expected Is to reject a different code")
	}
	if CodeOf(err) != CodeNameCollision {
		t.Errorf("expected CodeOf to return NameCollision, got %v", CodeOf(err))
	}
}

func TestWrapKeepsContextAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeInternal, cause, "write catalog image")

	if !Is(err, CodeInternal) {
		t.Errorf("expected Internal code")
	}
	if !strings.Contains(err.Error(), "write catalog image") ||
		!strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected context and cause in message, got %q", err.Error())
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := New(CodeCheckpointNotFound, "no batch named %q", "x")
	outer := fmt.Errorf("restore failed: %w", inner)

	if !Is(outer, CodeCheckpointNotFound) {
		t.Errorf("expected Is to see through fmt.Errorf wrapping")
	}
	if CodeOf(outer) != CodeCheckpointNotFound {
		t.Errorf("expected CodeOf to see through fmt.Errorf wrapping")
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Errorf("expected foreign errors to map to Internal")
	}
}

func TestCodeStrings(t *testing.T) {
	codes := []Code{
		CodeInternal, CodeSchemaMismatch, CodeNameCollision,
		CodeCheckpointNotFound, CodeWriterBusy, CodeUnknownColumn,
		CodeEmptyResult, CodeDivergentHistory, CodeCorrupted,
		CodeMissingData, CodeUnauthorized,
	}
	seen := map[string]bool{}
	for _, c := range codes {
		s := c.String()
		if s == "" || s == "unknown" {
			t.Errorf("code %d has no name", c)
		}
		if seen[s] {
			t.Errorf("duplicate code name %q", s)
		}
		seen[s] = true
	}
}
