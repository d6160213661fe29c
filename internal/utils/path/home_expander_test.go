package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/ss5upgrade/internal/utils/path"
)

func TestHomeExpanderExpand(testInstance *testing.T) {
	homeDirectory := filepath.FromSlash("/home/operator")

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare_tilde", input: "~", expected: homeDirectory},
		{name: "tilde_slash", input: "~/rules/ss5.yaml", expected: filepath.Join(homeDirectory, "rules", "ss5.yaml")},
		{name: "other_user_untouched", input: "~deploy/rector.php", expected: "~deploy/rector.php"},
		{name: "absolute_untouched", input: "/etc/ss5upgrade/rules.yaml", expected: "/etc/ss5upgrade/rules.yaml"},
		{name: "empty_untouched", input: "", expected: ""},
	}

	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return homeDirectory, nil })
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, expander.Expand(testCase.input))
		})
	}
}

func TestHomeExpanderLeavesPathWhenHomeUnknown(testInstance *testing.T) {
	lookups := 0
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		lookups++
		return "", errors.New("no home directory")
	})

	require.Equal(testInstance, "~/rector.php", expander.Expand("~/rector.php"))
	require.Equal(testInstance, "~", expander.Expand("~"))
	require.Equal(testInstance, 1, lookups)

	var nilExpander *pathutils.HomeExpander
	require.Equal(testInstance, "~/rector.php", nilExpander.Expand("~/rector.php"))
}
