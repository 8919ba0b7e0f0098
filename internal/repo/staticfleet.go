package repo

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// fleetSchema validates static fleet files before they are trusted as the
// source of monitored instances.
const fleetSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["instances"],
	"additionalProperties": false,
	"properties": {
		"instances": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"additionalProperties": false,
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"monitoring_enabled": {"type": "boolean"},
					"quarantine": {"type": "boolean"}
				}
			}
		}
	}
}`

// StaticFleet is a file-backed fleet enumerator for environments without an
// inventory service. The file is validated once at load; ListInstances
// never fails afterwards.
type StaticFleet struct {
	instances []models.InstanceConfig
}

type fleetFile struct {
	Instances []struct {
		ID                string `yaml:"id"`
		MonitoringEnabled *bool  `yaml:"monitoring_enabled"`
		Quarantine        bool   `yaml:"quarantine"`
	} `yaml:"instances"`
}

// NewStaticFleet loads and schema-validates a YAML fleet file. Instances
// without an explicit monitoring_enabled value default to monitored.
func NewStaticFleet(path string) (*StaticFleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}

	if err := validateFleetDoc(data); err != nil {
		return nil, fmt.Errorf("fleet file %s: %w", path, err)
	}

	var parsed fleetFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse fleet file: %w", err)
	}

	instances := make([]models.InstanceConfig, 0, len(parsed.Instances))
	for _, inst := range parsed.Instances {
		enabled := true
		if inst.MonitoringEnabled != nil {
			enabled = *inst.MonitoringEnabled
		}
		instances = append(instances, models.InstanceConfig{
			ID:                inst.ID,
			MonitoringEnabled: enabled,
			Quarantine:        inst.Quarantine,
		})
	}
	return &StaticFleet{instances: instances}, nil
}

// ListInstances returns a copy of the configured fleet.
func (f *StaticFleet) ListInstances(ctx context.Context) ([]models.InstanceConfig, error) {
	_ = ctx
	out := make([]models.InstanceConfig, len(f.instances))
	copy(out, f.instances)
	return out, nil
}

func validateFleetDoc(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse fleet file: %w", err)
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(fleetSchema))
	if err != nil {
		return fmt.Errorf("parse fleet schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fleet.schema.json", schemaDoc); err != nil {
		return fmt.Errorf("register fleet schema: %w", err)
	}
	schema, err := compiler.Compile("fleet.schema.json")
	if err != nil {
		return fmt.Errorf("compile fleet schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("fleet file invalid: %w", err)
	}
	return nil
}
