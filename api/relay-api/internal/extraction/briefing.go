// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_extraction

import (
	"fmt"
	"strings"
)

// Briefing sentence fragments, in spoken order.
var briefingParts = []struct {
	field  string
	phrase string
}{
	{"candidate_name", "Name is %v"},
	{"current_ctc_lpa", "CTC is %v LPA"},
	{"expected_ctc_lpa", "Expected CTC is %v LPA"},
	{"experience_years", "Experience is %v years"},
	{"domain", "Domain is %v"},
	{"notice_period", "Notice period is %v"},
}

// BuildBriefing renders a candidate profile into the single sentence spoken
// to the human agent before the bridge connects. Profiles with no usable
// fields produce a generic notice.
func BuildBriefing(profile map[string]any) string {
	var parts []string
	for _, p := range briefingParts {
		value, ok := profile[p.field]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && s == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(p.phrase, value))
	}
	if len(parts) == 0 {
		return "Incoming transfer. Details could not be extracted."
	}
	return fmt.Sprintf("Incoming transfer from the screening assistant. Candidate details: %s.", strings.Join(parts, ", "))
}
