package logx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"pkt.systems/pslog"
)

func TestWithHelpersAnnotate(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	WithOp(WithSession(log, "s-1"), "updateRoom").Info("sent")
	out := buf.String()
	for _, want := range []string{"s-1", "updateRoom", "sent"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %q", out, want)
		}
	}
}

func TestWithHelpersSkipEmpty(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	WithWorkspace(WithSession(log, ""), "").Info("plain")
	if strings.Contains(buf.String(), "session") || strings.Contains(buf.String(), "workspace") {
		t.Fatalf("empty values should not add fields: %q", buf.String())
	}
}

func TestNewRespectsDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}
	New(&buf, true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug line missing at debug level: %q", buf.String())
	}
}

func TestOrPrefersExplicitLogger(t *testing.T) {
	var buf bytes.Buffer
	explicit := New(&buf, false)
	ctx := pslog.ContextWithLogger(context.Background(), Discard())

	Or(ctx, explicit).Info("explicit")
	if !strings.Contains(buf.String(), "explicit") {
		t.Fatalf("Or should return the explicit logger")
	}
	if Or(ctx, nil) == nil {
		t.Fatalf("Or(ctx, nil) returned nil")
	}
}
