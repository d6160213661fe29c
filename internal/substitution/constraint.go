package substitution

import (
	"errors"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	constraintEmptyMessageConstant     = "constraint must be non-empty"
	alternativeSeparatorConstant       = '|'
	branchPrefixConstant               = "dev-"
	branchSuffixConstant               = "-dev"
	joinedAlternativeSeparatorConstant = " || "
	joinedConditionSeparatorConstant   = " "
)

var (
	errConstraintEmpty   = errors.New(constraintEmptyMessageConstant)
	stabilityFlagPattern = regexp.MustCompile(`(?i)@(dev|alpha|beta|rc|stable)\b`)
)

// validateConstraint accepts Composer version constraints. Stability flags
// such as "@dev" and branch references such as "dev-main" or "4.x-dev" are
// Composer extensions; the remaining version ranges are checked with semver.
func validateConstraint(constraint string) error {
	trimmedConstraint := strings.TrimSpace(constraint)
	if len(trimmedConstraint) == 0 {
		return errConstraintEmpty
	}

	withoutFlags := stabilityFlagPattern.ReplaceAllString(trimmedConstraint, "")
	versionAlternatives := []string{}
	for _, alternative := range strings.FieldsFunc(withoutFlags, func(character rune) bool { return character == alternativeSeparatorConstant }) {
		conditions := []string{}
		for _, condition := range strings.FieldsFunc(alternative, isConditionSeparator) {
			if isBranchReference(condition) {
				continue
			}
			conditions = append(conditions, condition)
		}
		if len(conditions) > 0 {
			versionAlternatives = append(versionAlternatives, strings.Join(conditions, joinedConditionSeparatorConstant))
		}
	}
	if len(versionAlternatives) == 0 {
		return nil
	}

	_, constraintError := semver.NewConstraint(strings.Join(versionAlternatives, joinedAlternativeSeparatorConstant))
	return constraintError
}

func isConditionSeparator(character rune) bool {
	return character == ' ' || character == ',' || character == '\t'
}

func isBranchReference(condition string) bool {
	lowered := strings.ToLower(condition)
	return strings.HasPrefix(lowered, branchPrefixConstant) || strings.HasSuffix(lowered, branchSuffixConstant)
}
