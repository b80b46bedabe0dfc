package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docindex/internal/engine"
	"github.com/roach88/docindex/internal/ir"
)

// MaxPermuted is the most versions a permuted scenario may hold.
// n versions replay n! orderings.
const MaxPermuted = 8

// Scenario defines a merge scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Selector names the winner rule. Empty selects the default.
	Selector string `yaml:"selector,omitempty"`

	// Permute replays every ordering (as one batch) and every batching of
	// the reference order, and requires all of them to converge.
	Permute bool `yaml:"permute,omitempty"`

	// Versions are ingested in this order by the reference run.
	Versions []VersionStep `yaml:"versions"`

	// Batches groups version ids into batches for the reference run.
	// Empty means one batch holding every version.
	Batches [][]string `yaml:"batches,omitempty"`

	// Assertions validate the reference run and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// VersionStep is one document version as written in a scenario file.
type VersionStep struct {
	Doc       string         `yaml:"doc"`
	Version   string         `yaml:"version"`
	Links     []string       `yaml:"links,omitempty"`
	UpdatedAt string         `yaml:"updated_at,omitempty"`
	Deleted   bool           `yaml:"deleted,omitempty"`
	Fields    map[string]any `yaml:"fields,omitempty"`
}

// DocumentVersion converts the step into an engine input.
func (s VersionStep) DocumentVersion() (ir.DocumentVersion, error) {
	v := ir.DocumentVersion{
		DocID:     s.Doc,
		VersionID: s.Version,
		Links:     append([]string{}, s.Links...),
		UpdatedAt: s.UpdatedAt,
		Deleted:   s.Deleted,
	}
	if s.Fields != nil {
		fields, err := ir.FromGo(s.Fields)
		if err != nil {
			return ir.DocumentVersion{}, fmt.Errorf("fields: %w", err)
		}
		v.Fields = fields.(ir.Object)
	}
	return v, nil
}

// Assertion validates the reference run or the final state.
type Assertion struct {
	// Type is one of head, absent, linked, unlinked, outcome, record_count.
	Type string `yaml:"type"`

	// Doc is the document id (head, absent).
	Doc string `yaml:"doc,omitempty"`

	// Version is the expected canonical version (head) or the version
	// whose outcome is checked (outcome).
	Version string `yaml:"version,omitempty"`

	// Forks is the exact expected fork set (head). Nil skips the check;
	// an empty list requires no forks.
	Forks []string `yaml:"forks,omitempty"`

	// Versions lists version ids (linked, unlinked).
	Versions []string `yaml:"versions,omitempty"`

	// Kind is the expected outcome name, such as "won" (outcome).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of records (record_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertHead        = "head"
	AssertAbsent      = "absent"
	AssertLinked      = "linked"
	AssertUnlinked    = "unlinked"
	AssertOutcome     = "outcome"
	AssertRecordCount = "record_count"
)

var outcomeKinds = map[string]bool{
	engine.OutcomeInserted.String():   true,
	engine.OutcomeReplaced.String():   true,
	engine.OutcomeWon.String():        true,
	engine.OutcomeForked.String():     true,
	engine.OutcomeSuperseded.String(): true,
	engine.OutcomeUnchanged.String():  true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Versions) == 0 {
		return fmt.Errorf("versions list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := engine.SelectorByName(s.Selector); err != nil {
		return err
	}
	if s.Permute && len(s.Versions) > MaxPermuted {
		return fmt.Errorf("permute allows at most %d versions, got %d", MaxPermuted, len(s.Versions))
	}

	seen := make(map[string]bool, len(s.Versions))
	for i, step := range s.Versions {
		v, err := step.DocumentVersion()
		if err != nil {
			return fmt.Errorf("versions[%d]: %w", i, err)
		}
		if err := v.Validate(); err != nil {
			return fmt.Errorf("versions[%d]: %w", i, err)
		}
		if seen[step.Version] {
			return fmt.Errorf("versions[%d]: duplicate version %q", i, step.Version)
		}
		seen[step.Version] = true
	}

	if len(s.Batches) > 0 {
		used := make(map[string]bool, len(seen))
		for i, batch := range s.Batches {
			if len(batch) == 0 {
				return fmt.Errorf("batches[%d]: batch is empty", i)
			}
			for _, id := range batch {
				if !seen[id] {
					return fmt.Errorf("batches[%d]: unknown version %q", i, id)
				}
				if used[id] {
					return fmt.Errorf("batches[%d]: version %q appears twice", i, id)
				}
				used[id] = true
			}
		}
		if len(used) != len(seen) {
			return fmt.Errorf("batches must name every version exactly once")
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHead:
		if a.Doc == "" || a.Version == "" {
			return fmt.Errorf("assertions[%d]: doc and version are required for head", index)
		}
	case AssertAbsent:
		if a.Doc == "" {
			return fmt.Errorf("assertions[%d]: doc is required for absent", index)
		}
	case AssertLinked, AssertUnlinked:
		if len(a.Versions) == 0 {
			return fmt.Errorf("assertions[%d]: versions list is required for %s", index, a.Type)
		}
	case AssertOutcome:
		if a.Version == "" {
			return fmt.Errorf("assertions[%d]: version is required for outcome", index)
		}
		if !outcomeKinds[a.Kind] {
			return fmt.Errorf("assertions[%d]: unknown outcome kind %q", index, a.Kind)
		}
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
