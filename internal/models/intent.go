// Package models defines the records, intents and request/response shapes shared across kotae.
package models

import "fmt"

// Intent is the classified purpose of a query.
type Intent string

const (
	// IntentProjectMatching is a capability question: have we built something like X.
	IntentProjectMatching Intent = "project_matching"
	// IntentCaseStudyRetrieval is a narrative or outcome question about past engagements.
	IntentCaseStudyRetrieval Intent = "case_study_retrieval"
	// IntentAmbiguous covers unclear, off-topic and staffing questions.
	IntentAmbiguous Intent = "ambiguous"
)

// Intents lists every valid intent in schema order.
var Intents = []Intent{IntentProjectMatching, IntentCaseStudyRetrieval, IntentAmbiguous}

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// FailureReason says why a turn needs clarification.
type FailureReason string

const (
	FailureAmbiguousIntent   FailureReason = "ambiguous_intent"
	FailureNoMatchingRecords FailureReason = "no_matching_records"
)

// IntentContext is the structured result of classifying one query.
type IntentContext struct {
	Intent        Intent   `json:"intent"`
	Justification string   `json:"justification"`
	Technologies  []string `json:"technologies"`
	Solutions     []string `json:"solutions"`
	Services      []string `json:"services"`
	Industry      []string `json:"industry"`
}

// Validate checks that the intent is one of the known values.
func (c *IntentContext) Validate() error {
	if !c.Intent.Valid() {
		return fmt.Errorf("unknown intent %q", c.Intent)
	}
	return nil
}
