package agent

import (
	"regexp"
	"strings"
)

// planMarkers introduce a plan inside free text. Matched case-insensitively.
//
//nolint:gochecknoglobals // fixed marker set
var planMarkers = []string{
	"here's my plan:",
	"my plan is:",
	"here is my plan:",
}

// planEndMarker optionally terminates a plan.
const planEndMarker = "end of plan"

// minListRun is the shortest list run accepted as a plan.
const minListRun = 2

var listItem = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*+])\s+\S`)

// ExtractPlan pulls the plan out of an agent response. A marker phrase wins,
// then the first run of at least two list lines; otherwise the whole text is
// the plan. Text without markers or list runs is returned unchanged.
func ExtractPlan(text string) string {
	if plan, ok := planAfterMarker(text); ok {
		return plan
	}
	if plan, ok := planFromList(text); ok {
		return plan
	}
	return text
}

func planAfterMarker(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, marker := range planMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(marker):]
		if end := strings.Index(strings.ToLower(rest), planEndMarker); end >= 0 {
			rest = rest[:end]
		}
		if plan := strings.TrimSpace(rest); plan != "" {
			return plan, true
		}
	}
	return "", false
}

func planFromList(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	var run []string
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), planEndMarker) {
			break
		}
		if listItem.MatchString(line) {
			run = append(run, line)
			continue
		}
		if len(run) >= minListRun {
			break
		}
		run = nil
	}
	if len(run) < minListRun {
		return "", false
	}
	return strings.Join(run, "\n"), true
}
