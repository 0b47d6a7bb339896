// Package reconciler ingests provider webhook events, deduplicates
// end-of-call reports, and runs the periodic sweep for calls whose
// report never arrived. It is the sole authority for mapping provider
// reasons to terminal outcomes.
package reconciler

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"

	"leadcall_backend/internal/engine"
)

//go:embed reasons.yaml
var reasonsYAML []byte

type reasonTable struct {
	Missed []string `yaml:"missed"`
	Failed []string `yaml:"failed"`
}

var reasons = mustLoadReasons()

func mustLoadReasons() reasonTable {
	var t reasonTable
	if err := yaml.Unmarshal(reasonsYAML, &t); err != nil {
		panic("reconciler: bad embedded reason table: " + err.Error())
	}
	return t
}

// MapReason converts a provider ended-reason into an attempt outcome.
// A reason matching no table entry is Completed only when the call was
// actually answered; an unanswered unknown reason counts as Missed.
func MapReason(endedReason string, answered bool) engine.Outcome {
	reason := strings.ToLower(endedReason)

	for _, kw := range reasons.Failed {
		if strings.Contains(reason, kw) {
			return engine.OutcomeFailed
		}
	}
	for _, kw := range reasons.Missed {
		if strings.Contains(reason, kw) {
			return engine.OutcomeMissed
		}
	}
	if answered {
		return engine.OutcomeCompleted
	}
	return engine.OutcomeMissed
}
