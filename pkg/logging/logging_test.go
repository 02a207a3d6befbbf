package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWriterRejectsUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf, "loud", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInitWriterDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf, "", "json"); err != nil {
		t.Fatalf("InitWriter: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v", zerolog.GlobalLevel())
	}
}

func TestPionFactoryScopesAndLevels(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	factory := &PionFactory{Logger: zerolog.New(&buf)}
	l := factory.NewLogger("ice")

	l.Tracef("hidden %d", 1)
	l.Debugf("gathered %d candidates", 3)
	l.Warn("slow")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("trace line leaked at debug level: %s", out)
	}
	if !strings.Contains(out, `"pion":"ice"`) || !strings.Contains(out, "gathered 3 candidates") {
		t.Fatalf("missing scoped debug line: %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("missing warn line: %s", out)
	}
}
