package generate

import (
	"fmt"
	"strings"
)

// ValidateTestCode checks that content looks like a compilable Google Test
// file. Findings are returned as warnings, not errors: a weak backend reply
// still gets written out so the user can inspect it.
func ValidateTestCode(content string) []string {
	var warnings []string

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		warnings = append(warnings, "generated content is empty")
		return warnings
	}
	if strings.Contains(trimmed, "```") {
		warnings = append(warnings, "content still carries markdown code fences")
	}
	if !strings.Contains(trimmed, "#include") {
		warnings = append(warnings, "no #include directives found")
	}
	if !strings.Contains(trimmed, "TEST(") && !strings.Contains(trimmed, "TEST_F(") {
		warnings = append(warnings, "no TEST/TEST_F cases found")
	}
	if !strings.Contains(trimmed, "EXPECT_") && !strings.Contains(trimmed, "ASSERT_") && !strings.Contains(trimmed, "SUCCEED()") {
		warnings = append(warnings, "no Google Test assertions found")
	}
	return warnings
}

// StripCodeFences removes a surrounding markdown fence from a backend reply,
// including a language tag on the opening fence. Content without fences is
// returned unchanged.
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return content
	}
	// Drop the opening fence line (with any language tag) and the closing
	// fence if present.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// warningSummary joins warnings for a single log line.
func warningSummary(warnings []string) string {
	return fmt.Sprintf("%d issue(s): %s", len(warnings), strings.Join(warnings, "; "))
}
