package substitution

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/temirov/ss5upgrade/internal/manifest"
)

const (
	invalidTableMessageConstant               = "invalid substitution table"
	tablePathRequiredMessageConstant          = "substitution table path must be provided"
	tableReadErrorTemplateConstant            = "failed to read substitution table %s: %w"
	tableParseErrorTemplateConstant           = "%w: failed to parse substitution table: %w"
	tableValidationTemplateConstant           = "%w: %s"
	ruleNameRequiredMessageConstant           = "rule package names must be non-empty"
	ruleUnknownActionTemplateConstant         = "rule for %s has unknown action %q"
	ruleTargetRequiredTemplateConstant        = "rename rule for %s requires a target"
	ruleTargetUnexpectedTemplateConstant      = "%s rule for %s must not define a target"
	ruleSelfRenameTemplateConstant            = "rename rule for %s targets itself"
	ruleChainedRenameTemplateConstant         = "rename target %s of %s is itself substituted"
	fallbackNameRequiredMessageConstant       = "fallback package names must be non-empty"
	fallbackConstraintInvalidTemplateConstant = "fallback constraint %q for %s is invalid: %v"
	pinNameRequiredMessageConstant            = "pin package names must be non-empty"
	pinDuplicateTemplateConstant              = "pin %s is defined more than once"
	pinConstraintInvalidTemplateConstant      = "pin constraint %q for %s is invalid: %v"
	pinsRequiredMessageConstant               = "at least one pin must be defined"
)

//go:embed rules.yaml
var defaultRulesDocument []byte

// ErrInvalidTable indicates a substitution table that failed validation.
var ErrInvalidTable = errors.New(invalidTableMessageConstant)

// Action selects what happens to a package during substitution.
type Action string

// Supported substitution actions.
const (
	ActionKeep   Action = Action("keep")
	ActionDrop   Action = Action("drop")
	ActionRename Action = Action("rename")
)

// Rule is the substitution decision for one package.
type Rule struct {
	Action Action `yaml:"action"`
	Target string `yaml:"target"`
}

// Pin is a package entry written into require before installation starts.
type Pin struct {
	Name       string `yaml:"name"`
	Constraint string `yaml:"constraint"`
}

// Definition is the serialized form of a Table.
type Definition struct {
	Rules     map[string]Rule   `yaml:"rules"`
	Fallbacks map[string]string `yaml:"fallbacks"`
	Pins      []Pin             `yaml:"pins"`
}

// Table is an immutable, validated substitution table.
type Table struct {
	rules     map[string]Rule
	fallbacks map[string]string
	pins      []Pin
}

// NewTable validates a definition and builds a Table from it.
func NewTable(definition Definition) (*Table, error) {
	rules := make(map[string]Rule, len(definition.Rules))
	for packageName, rule := range definition.Rules {
		trimmedName := strings.TrimSpace(packageName)
		if len(trimmedName) == 0 {
			return nil, invalidTableError(ruleNameRequiredMessageConstant)
		}
		normalizedRule := Rule{Action: Action(strings.ToLower(strings.TrimSpace(string(rule.Action)))), Target: strings.TrimSpace(rule.Target)}
		switch normalizedRule.Action {
		case ActionRename:
			if len(normalizedRule.Target) == 0 {
				return nil, invalidTableError(fmt.Sprintf(ruleTargetRequiredTemplateConstant, trimmedName))
			}
			if normalizedRule.Target == trimmedName {
				return nil, invalidTableError(fmt.Sprintf(ruleSelfRenameTemplateConstant, trimmedName))
			}
		case ActionKeep, ActionDrop:
			if len(normalizedRule.Target) > 0 {
				return nil, invalidTableError(fmt.Sprintf(ruleTargetUnexpectedTemplateConstant, normalizedRule.Action, trimmedName))
			}
		default:
			return nil, invalidTableError(fmt.Sprintf(ruleUnknownActionTemplateConstant, trimmedName, rule.Action))
		}
		rules[trimmedName] = normalizedRule
	}

	for _, packageName := range sortedKeys(rules) {
		rule := rules[packageName]
		if rule.Action != ActionRename {
			continue
		}
		if targetRule, targetMapped := rules[rule.Target]; targetMapped && targetRule.Action != ActionKeep {
			return nil, invalidTableError(fmt.Sprintf(ruleChainedRenameTemplateConstant, rule.Target, packageName))
		}
	}

	fallbacks := make(map[string]string, len(definition.Fallbacks))
	for packageName, constraint := range definition.Fallbacks {
		trimmedName := strings.TrimSpace(packageName)
		if len(trimmedName) == 0 {
			return nil, invalidTableError(fallbackNameRequiredMessageConstant)
		}
		trimmedConstraint := strings.TrimSpace(constraint)
		if constraintError := validateConstraint(trimmedConstraint); constraintError != nil {
			return nil, invalidTableError(fmt.Sprintf(fallbackConstraintInvalidTemplateConstant, constraint, trimmedName, constraintError))
		}
		fallbacks[trimmedName] = trimmedConstraint
	}

	if len(definition.Pins) == 0 {
		return nil, invalidTableError(pinsRequiredMessageConstant)
	}
	pins := make([]Pin, 0, len(definition.Pins))
	seenPins := make(map[string]struct{}, len(definition.Pins))
	for _, pin := range definition.Pins {
		trimmedName := strings.TrimSpace(pin.Name)
		if len(trimmedName) == 0 {
			return nil, invalidTableError(pinNameRequiredMessageConstant)
		}
		if _, duplicate := seenPins[trimmedName]; duplicate {
			return nil, invalidTableError(fmt.Sprintf(pinDuplicateTemplateConstant, trimmedName))
		}
		seenPins[trimmedName] = struct{}{}
		trimmedConstraint := strings.TrimSpace(pin.Constraint)
		if constraintError := validateConstraint(trimmedConstraint); constraintError != nil {
			return nil, invalidTableError(fmt.Sprintf(pinConstraintInvalidTemplateConstant, pin.Constraint, trimmedName, constraintError))
		}
		pins = append(pins, Pin{Name: trimmedName, Constraint: trimmedConstraint})
	}

	return &Table{rules: rules, fallbacks: fallbacks, pins: pins}, nil
}

// DefaultTable returns the table embedded in the binary.
func DefaultTable() (*Table, error) {
	return LoadTable(bytes.NewReader(defaultRulesDocument))
}

// LoadTable decodes and validates a YAML table. Unknown keys are rejected.
func LoadTable(reader io.Reader) (*Table, error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var definition Definition
	if decodeError := decoder.Decode(&definition); decodeError != nil {
		return nil, fmt.Errorf(tableParseErrorTemplateConstant, ErrInvalidTable, decodeError)
	}
	return NewTable(definition)
}

// LoadTableFile reads a YAML table from the file system.
func LoadTableFile(fileSystem afero.Fs, filePath string) (*Table, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return nil, errors.New(tablePathRequiredMessageConstant)
	}

	contentBytes, readError := afero.ReadFile(fileSystem, trimmedPath)
	if readError != nil {
		return nil, fmt.Errorf(tableReadErrorTemplateConstant, trimmedPath, readError)
	}
	return LoadTable(bytes.NewReader(contentBytes))
}

// Rule returns the rule for a package; unmapped packages are kept.
func (table *Table) Rule(packageName string) Rule {
	rule, mapped := table.rules[packageName]
	if !mapped {
		return Rule{Action: ActionKeep}
	}
	return rule
}

// Apply substitutes every entry of the list. Dropped packages disappear,
// renamed packages take the target name with no constraint at the original
// position, and every other entry passes through unchanged. When a name
// would occur twice the first occurrence wins.
func (table *Table) Apply(packages manifest.PackageList) manifest.PackageList {
	substituted := make(manifest.PackageList, 0, len(packages))
	seenNames := make(map[string]struct{}, len(packages))

	for _, entry := range packages {
		rule := table.Rule(entry.Name)
		var resultEntry manifest.PackageEntry
		switch rule.Action {
		case ActionDrop:
			continue
		case ActionRename:
			resultEntry = manifest.PackageEntry{Name: rule.Target}
		default:
			resultEntry = entry.Clone()
		}

		if _, seen := seenNames[resultEntry.Name]; seen {
			continue
		}
		seenNames[resultEntry.Name] = struct{}{}
		substituted = append(substituted, resultEntry)
	}

	return substituted
}

// Fallback returns the constraint to retry a package with after its original constraint failed.
func (table *Table) Fallback(packageName string) (string, bool) {
	constraint, found := table.fallbacks[packageName]
	return constraint, found
}

// Pins returns the pinned entries in declaration order.
func (table *Table) Pins() manifest.PackageList {
	pinned := make(manifest.PackageList, 0, len(table.pins))
	for _, pin := range table.pins {
		pinned = append(pinned, manifest.PackageEntry{Name: pin.Name, Constraint: manifest.Constraint(pin.Constraint)})
	}
	return pinned
}

func invalidTableError(detail string) error {
	return fmt.Errorf(tableValidationTemplateConstant, ErrInvalidTable, detail)
}

func sortedKeys(rules map[string]Rule) []string {
	keys := make([]string, 0, len(rules))
	for key := range rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
