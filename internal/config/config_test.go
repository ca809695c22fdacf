package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"leadline/internal/segment"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Windows) != 5 {
		t.Fatalf("expected 5 windows, got %d", len(cfg.Windows))
	}
	if len(cfg.Weights) != 10 {
		t.Fatalf("expected 10 weight rows, got %d", len(cfg.Weights))
	}
	if got := cfg.Weights[segment.Restaurants]; got[1] != 0 || got[0] != 3 {
		t.Fatalf("unexpected restaurant weights %v", got)
	}
}

func TestDefaultPickerW5Pool(t *testing.T) {
	cfg := Default()
	p, err := cfg.Picker()
	if err != nil {
		t.Fatalf("picker: %v", err)
	}
	loc := cfg.Location()
	pool := p.Pool(time.Date(2025, 2, 3, 18, 0, 0, 0, loc))
	// W5 weights: D1 F1 H1 I2 J1.
	want := []string{segment.Automotive, segment.Retail, segment.Lodging, segment.Education, segment.Education, segment.Professional}
	if strings.Join(pool, ",") != strings.Join(want, ",") {
		t.Fatalf("W5 pool %v", pool)
	}
}

func TestValidateRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"short row": `business: {timezone: UTC}
windows:
  - {id: W1, start: "10:00", end: "11:00"}
weights:
  A_CONSTRUCAO_SERVICOS_LAR: [1, 2]
`,
		"weight range": `business: {timezone: UTC}
windows:
  - {id: W1, start: "10:00", end: "11:00"}
weights:
  A_CONSTRUCAO_SERVICOS_LAR: [4]
`,
		"overlap": `business: {timezone: UTC}
windows:
  - {id: W1, start: "10:00", end: "11:00"}
  - {id: W2, start: "10:30", end: "12:00"}
`,
		"unknown segment": `business: {timezone: UTC}
windows:
  - {id: W1, start: "10:00", end: "11:00"}
weights:
  Z_NOPE: [1]
`,
		"timezone": `business: {timezone: Mars/Olympus}
windows:
  - {id: W1, start: "10:00", end: "11:00"}
`,
		"webhook": `business: {timezone: UTC}
windows:
  - {id: W1, start: "10:00", end: "11:00"}
webhooks:
  - {url: ""}
`,
	}
	for name, raw := range cases {
		if _, err := FromYAML([]byte(raw)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("expected nil config for missing file, got %v %v", cfg, err)
	}
	raw := `business: {timezone: UTC}
windows:
  - {id: AM, start: "09:00", end: "12:00"}
weights:
  B: [3]
`
	if err := os.WriteFile(filepath.Join(dir, "leadline.yml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := cfg.Picker()
	if err != nil {
		t.Fatalf("picker: %v", err)
	}
	if got := p.Weights[segment.Restaurants]; len(got) != 1 || got[0] != 3 {
		t.Fatalf("short key not normalised: %v", p.Weights)
	}
}
