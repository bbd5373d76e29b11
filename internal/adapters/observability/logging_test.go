package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod", "", "syncer")
	if l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", l.GetLevel())
	}
	l.Debug().Msg("hidden")
	l.Info().Str("property", "P1").Msg("sync done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if m["component"] != "syncer" || m["property"] != "P1" || m["message"] != "sync done" {
		t.Fatalf("unexpected fields: %v", m)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	if lvl := newLogger(&buf, "dev", "", "api").GetLevel(); lvl != zerolog.DebugLevel {
		t.Fatalf("dev default = %s, want debug", lvl)
	}
	if lvl := newLogger(&buf, "prod", "warn", "api").GetLevel(); lvl != zerolog.WarnLevel {
		t.Fatalf("explicit = %s, want warn", lvl)
	}
	if lvl := newLogger(&buf, "prod", "loud", "api").GetLevel(); lvl != zerolog.InfoLevel {
		t.Fatalf("unknown = %s, want info", lvl)
	}
}
