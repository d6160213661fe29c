package upgrade

import (
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

const (
	// DefaultDiffMaxLines is the default maximum number of manifest diff lines shown.
	DefaultDiffMaxLines = 40

	diffLineCapFlagNameConstant        = "--" + diffLinesFlagNameConstant
	diffOriginalLabelTemplateConstant  = "%s (original)"
	diffRewrittenLabelTemplateConstant = "%s (rewritten)"
	diffTruncationTemplateConstant     = "... (truncated to %d lines; rerun with %s <n> to see more)"
	diffLineSeparatorConstant          = "\n"
)

// DiffPreview is the unified diff between the original and rewritten manifest.
type DiffPreview struct {
	UnifiedDiff string
	Truncated   bool
}

func normalizeDiffMaxLines(value int) int {
	if value <= 0 {
		return DefaultDiffMaxLines
	}
	return value
}

func renderManifestDiff(manifestPath string, originalContent []byte, rewrittenContent []byte, maxLines int) DiffPreview {
	limit := normalizeDiffMaxLines(maxLines)
	unifiedDiff := udiff.Unified(
		fmt.Sprintf(diffOriginalLabelTemplateConstant, manifestPath),
		fmt.Sprintf(diffRewrittenLabelTemplateConstant, manifestPath),
		string(originalContent),
		string(rewrittenContent),
	)
	lines := splitDiffLines(unifiedDiff)
	if len(lines) <= limit {
		return DiffPreview{UnifiedDiff: ensureTrailingNewline(strings.Join(lines, diffLineSeparatorConstant))}
	}

	truncatedLines := append(lines[:limit:limit], fmt.Sprintf(diffTruncationTemplateConstant, limit, diffLineCapFlagNameConstant))
	return DiffPreview{UnifiedDiff: ensureTrailingNewline(strings.Join(truncatedLines, diffLineSeparatorConstant)), Truncated: true}
}

func splitDiffLines(content string) []string {
	trimmedContent := strings.TrimRight(content, diffLineSeparatorConstant)
	if len(trimmedContent) == 0 {
		return []string{}
	}
	return strings.Split(trimmedContent, diffLineSeparatorConstant)
}

func ensureTrailingNewline(content string) string {
	if len(content) == 0 || strings.HasSuffix(content, diffLineSeparatorConstant) {
		return content
	}
	return content + diffLineSeparatorConstant
}
