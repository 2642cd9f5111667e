package core

import (
	"strings"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	payload := `[
		{"name": "SAT-1", "line1": "1 00001U ...", "line2": "2 00001 ..."},
		{"name": "SAT-2", "line1": "1 00002U ...", "line2": "2 00002 ..."}
	]`

	sets, err := LoadCatalog(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("len = %d, want 2", len(sets))
	}
	if sets[0].Name != "SAT-1" || sets[1].Name != "SAT-2" {
		t.Fatalf("unexpected names: %q, %q", sets[0].Name, sets[1].Name)
	}
	if sets[0].Line1 == "" || sets[0].Line2 == "" {
		t.Fatalf("element lines not carried through")
	}
}

func TestLoadCatalog_RejectsEmptyName(t *testing.T) {
	payload := `[{"name": "", "line1": "1 ...", "line2": "2 ..."}]`
	if _, err := LoadCatalog(strings.NewReader(payload)); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestLoadCatalog_RejectsMissingLines(t *testing.T) {
	payload := `[{"name": "SAT-1", "line1": "1 ..."}]`
	if _, err := LoadCatalog(strings.NewReader(payload)); err == nil {
		t.Fatalf("expected error for missing line2")
	}
}

func TestLoadCatalog_RejectsBadJSON(t *testing.T) {
	if _, err := LoadCatalog(strings.NewReader(`{not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
