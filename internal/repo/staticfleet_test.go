package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFleetFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fleet file: %v", err)
	}
	return path
}

func TestStaticFleetLoadsValidFile(t *testing.T) {
	path := writeFleetFile(t, `instances:
  - id: i-001
  - id: i-002
    monitoring_enabled: false
  - id: i-003
    quarantine: true
`)
	fleet, err := NewStaticFleet(path)
	if err != nil {
		t.Fatalf("load fleet: %v", err)
	}

	instances, err := fleet.ListInstances(context.Background())
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(instances))
	}
	if !instances[0].MonitoringEnabled {
		t.Fatalf("monitoring must default to enabled")
	}
	if instances[1].MonitoringEnabled {
		t.Fatalf("explicit monitoring_enabled false must be honoured")
	}
	if !instances[2].Quarantine {
		t.Fatalf("quarantine flag must be honoured")
	}
}

func TestStaticFleetRejectsUnknownFields(t *testing.T) {
	path := writeFleetFile(t, `instances:
  - id: i-001
    monitroing_enabled: true
`)
	if _, err := NewStaticFleet(path); err == nil {
		t.Fatalf("misspelled field must fail schema validation")
	}
}

func TestStaticFleetRejectsMissingID(t *testing.T) {
	path := writeFleetFile(t, `instances:
  - monitoring_enabled: true
`)
	if _, err := NewStaticFleet(path); err == nil {
		t.Fatalf("missing id must fail schema validation")
	}
}

func TestStaticFleetMissingFile(t *testing.T) {
	if _, err := NewStaticFleet("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing fleet file")
	}
}

func TestStaticFleetListReturnsCopy(t *testing.T) {
	path := writeFleetFile(t, `instances:
  - id: i-001
`)
	fleet, err := NewStaticFleet(path)
	if err != nil {
		t.Fatalf("load fleet: %v", err)
	}

	first, _ := fleet.ListInstances(context.Background())
	first[0].ID = "mutated"

	second, _ := fleet.ListInstances(context.Background())
	if second[0].ID != "i-001" {
		t.Fatalf("callers must not be able to mutate the fleet")
	}
}
