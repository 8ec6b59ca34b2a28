package paintcore

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestLogger_DefaultIsSilent(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	SetLogger(nil)

	Logger().Info("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output after SetLogger(nil), got %q", buf.String())
	}
}

func TestLogger_SetAndGet(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	SetLogger(l)
	defer SetLogger(nil)

	if Logger() != l {
		t.Fatal("Logger() did not return the logger passed to SetLogger")
	}

	Logger().Warn("command rejected", "reason", "invalid layer id")
	if buf.Len() == 0 {
		t.Error("expected log output after SetLogger with a real handler")
	}
}
