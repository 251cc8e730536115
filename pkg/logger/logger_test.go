package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})

	ctx := context.Background()
	ctx = log.WithBookingID(ctx, "bk-123")
	ctx = log.WithProviderID(ctx, "pr-456")

	log.Error(ctx, "transition failed", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"booking_id\"")) {
		t.Fatalf("expected booking_id in entry: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"provider_id\"")) {
		t.Fatalf("expected provider_id in entry: %s", buf.String())
	}
}

func TestWithFieldsDoesNotMutateParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})

	parent := context.Background()
	_ = log.WithFields(parent, map[string]any{"sweep": "monthly-reset"})

	log.Info(parent, "parent entry")
	if bytes.Contains(buf.Bytes(), []byte("monthly-reset")) {
		t.Fatalf("child fields leaked into parent context: %s", buf.String())
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %v", lvl)
	}
	if lvl := ParseLevel("nonsense"); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info for invalid level, got %v", lvl)
	}
	if lvl := ParseLevel("warn"); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %v", lvl)
	}
}
