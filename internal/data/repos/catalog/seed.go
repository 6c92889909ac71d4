package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/trainwatch-backend/internal/domain/catalog"
)

type yamlCatalog struct {
	Sessions []yamlSession `yaml:"sessions"`
}

type yamlSession struct {
	SessionID string        `yaml:"sessionId"`
	Concepts  []yamlConcept `yaml:"concepts"`
}

type yamlConcept struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Summary   string  `yaml:"summary"`
	StartTime float64 `yaml:"startTime"`
	EndTime   float64 `yaml:"endTime"`
}

// LoadFile reads a YAML concept catalog from disk.
func LoadFile(path string) ([]*catalog.Concept, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read concept catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a concept catalog. Concepts keep their order in the file as
// their position within the session.
func Parse(data []byte) ([]*catalog.Concept, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse concept catalog: %w", err)
	}
	var out []*catalog.Concept
	for si, s := range doc.Sessions {
		sessionID := strings.TrimSpace(s.SessionID)
		if sessionID == "" {
			return nil, fmt.Errorf("sessions[%d]: sessionId is required", si)
		}
		seen := make(map[string]bool, len(s.Concepts))
		for ci, c := range s.Concepts {
			id := strings.TrimSpace(c.ID)
			switch {
			case id == "":
				return nil, fmt.Errorf("sessions[%d].concepts[%d]: id is required", si, ci)
			case seen[id]:
				return nil, fmt.Errorf("sessions[%d].concepts[%d]: duplicate id %q", si, ci, id)
			case c.StartTime < 0 || c.EndTime < c.StartTime:
				return nil, fmt.Errorf("sessions[%d].concepts[%d]: invalid range %.3f-%.3f", si, ci, c.StartTime, c.EndTime)
			}
			seen[id] = true
			name := strings.TrimSpace(c.Name)
			if name == "" {
				name = id
			}
			out = append(out, &catalog.Concept{
				ConceptID: id,
				SessionID: sessionID,
				Position:  ci,
				Name:      name,
				Summary:   strings.TrimSpace(c.Summary),
				StartTime: c.StartTime,
				EndTime:   c.EndTime,
			})
		}
	}
	return out, nil
}
