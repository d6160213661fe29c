package upgrade

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testDiffManifestPathConstant = "/srv/site/composer.json"
	testDiffOriginalConstant     = "{\n    \"require\": {\n        \"php\": \"^7.4\"\n    }\n}\n"
	testDiffRewrittenConstant    = "{\n    \"require\": {\n        \"php\": \"^8.1\"\n    }\n}\n"
)

func TestRenderManifestDiff(testInstance *testing.T) {
	testCases := []struct {
		name              string
		rewritten         string
		maxLines          int
		expectedLines     []string
		expectedTruncated bool
	}{
		{
			name:      "full_diff",
			rewritten: testDiffRewrittenConstant,
			maxLines:  40,
			expectedLines: []string{
				"--- /srv/site/composer.json (original)",
				"+++ /srv/site/composer.json (rewritten)",
				"@@ -1,5 +1,5 @@",
				" {",
				"     \"require\": {",
				"-        \"php\": \"^7.4\"",
				"+        \"php\": \"^8.1\"",
				"     }",
				" }",
			},
		},
		{
			name:      "truncated_diff",
			rewritten: testDiffRewrittenConstant,
			maxLines:  2,
			expectedLines: []string{
				"--- /srv/site/composer.json (original)",
				"+++ /srv/site/composer.json (rewritten)",
				"... (truncated to 2 lines; rerun with --diff-lines <n> to see more)",
			},
			expectedTruncated: true,
		},
		{
			name:          "identical_content",
			rewritten:     testDiffOriginalConstant,
			maxLines:      40,
			expectedLines: []string{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			preview := renderManifestDiff(testDiffManifestPathConstant, []byte(testDiffOriginalConstant), []byte(testCase.rewritten), testCase.maxLines)
			require.Equal(testInstance, testCase.expectedTruncated, preview.Truncated)
			require.Equal(testInstance, testCase.expectedLines, splitDiffLines(preview.UnifiedDiff))
			if len(testCase.expectedLines) > 0 {
				require.True(testInstance, strings.HasSuffix(preview.UnifiedDiff, "\n"))
			}
		})
	}
}

func TestNormalizeDiffMaxLines(testInstance *testing.T) {
	require.Equal(testInstance, DefaultDiffMaxLines, normalizeDiffMaxLines(0))
	require.Equal(testInstance, DefaultDiffMaxLines, normalizeDiffMaxLines(-1))
	require.Equal(testInstance, 7, normalizeDiffMaxLines(7))
}
