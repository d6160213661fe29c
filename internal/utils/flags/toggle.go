package flags

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

const (
	toggleTypeNameConstant        = "bool"
	toggleParseErrorTemplate      = "invalid toggle value %q (use yes or no)"
	toggleDefaultTruePlaceholder  = "<YES|no>"
	toggleDefaultFalsePlaceholder = "<yes|NO>"
	toggleUsageTemplateConstant   = "`%s` %s"
	toggleUsageBareTemplate       = "`%s`"
	longFlagPrefixConstant        = "--"
	shortFlagPrefixConstant       = "-"
	flagValueSeparatorConstant    = "="
	argumentTerminatorConstant    = "--"
	implicitToggleValueConstant   = "true"
	toggleShorthandLengthConstant = 1
)

var (
	toggleLiterals = map[string]bool{
		"true": true, "yes": true, "on": true, "1": true, "t": true, "y": true,
		"false": false, "no": false, "off": false, "0": false, "f": false, "n": false,
	}

	toggleRegistryMutex sync.RWMutex
	toggleRegistry      = map[string]struct{}{}
)

// AddToggleFlag registers a boolean flag that also accepts yes/no style
// values, written either as --name=value or as --name value once the
// arguments pass through NormalizeToggleArguments. A nil target is allowed;
// the value is then read back through the flag set.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	flagSet.VarP(newToggleValue(defaultValue, target), name, shorthand, usage)
	flag := flagSet.Lookup(name)
	flag.NoOptDefVal = implicitToggleValueConstant
	flag.Usage = formatToggleUsage(usage, defaultValue)

	toggleRegistryMutex.Lock()
	defer toggleRegistryMutex.Unlock()
	toggleRegistry[longFlagPrefixConstant+name] = struct{}{}
	if len(shorthand) == toggleShorthandLengthConstant {
		toggleRegistry[shortFlagPrefixConstant+shorthand] = struct{}{}
	}
}

// NormalizeToggleArguments joins a registered toggle flag with a following
// value argument ("--color no" becomes "--color=no"). Everything after "--"
// is left untouched.
func NormalizeToggleArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == argumentTerminatorConstant {
			return append(normalized, arguments[index:]...)
		}
		if isRegisteredToggle(current) && index+1 < len(arguments) && !strings.HasPrefix(arguments[index+1], shortFlagPrefixConstant) {
			normalized = append(normalized, current+flagValueSeparatorConstant+arguments[index+1])
			index++
			continue
		}
		normalized = append(normalized, current)
	}
	return normalized
}

func isRegisteredToggle(argument string) bool {
	if !strings.HasPrefix(argument, shortFlagPrefixConstant) || strings.Contains(argument, flagValueSeparatorConstant) {
		return false
	}
	toggleRegistryMutex.RLock()
	defer toggleRegistryMutex.RUnlock()
	_, registered := toggleRegistry[argument]
	return registered
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleDefaultFalsePlaceholder
	if defaultValue {
		placeholder = toggleDefaultTruePlaceholder
	}
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(toggleUsageBareTemplate, placeholder)
	}
	return fmt.Sprintf(toggleUsageTemplateConstant, placeholder, trimmedDescription)
}

type toggleValue struct {
	enabled bool
	target  *bool
}

func newToggleValue(defaultValue bool, target *bool) *toggleValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleValue{enabled: defaultValue, target: target}
}

func (value *toggleValue) Set(rawValue string) error {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalizedValue) == 0 {
		normalizedValue = implicitToggleValueConstant
	}
	enabled, known := toggleLiterals[normalizedValue]
	if !known {
		return fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}

	value.enabled = enabled
	if value.target != nil {
		*value.target = enabled
	}
	return nil
}

func (value *toggleValue) String() string {
	if value == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(value.enabled)
}

func (value *toggleValue) Type() string {
	return toggleTypeNameConstant
}
