package workflow

import "github.com/hyperjump/kotae/internal/models"

const (
	clarifyAmbiguousPrompt = "I’m not quite sure if you’re looking to **explore our past case studies** " +
		"or if you want to **match specific project requirements** against our expertise. " +
		"Could you clarify which one you're interested in?"
	clarifyNoRecordsPrompt = "I couldn't find any records that match those specific criteria. " +
		"Could you please provide more details?"
	clarifyDefaultPrompt = "I'm sorry, I'm having a bit of trouble processing that. Could you please provide more details?"

	// GiveUpMessage ends a conversation that used up its clarification attempts.
	GiveUpMessage = "Could not find an answer after multiple attempts. Please try a new query."
	// FailedMessage is returned when a run ends without reaching a terminal step.
	FailedMessage = "An unexpected end to the workflow occurred."
)

// clarificationPrompt returns the question asked for reason. Each reason has its own wording.
func clarificationPrompt(reason models.FailureReason) string {
	switch reason {
	case models.FailureAmbiguousIntent:
		return clarifyAmbiguousPrompt
	case models.FailureNoMatchingRecords:
		return clarifyNoRecordsPrompt
	default:
		return clarifyDefaultPrompt
	}
}

const projectSummarySystemPrompt = `You write structured summaries of delivered software projects for a consultancy's sales team.

Rules:
1. Every project record produces exactly one project card. Never skip, merge or group records, even similar ones.
2. Use only what is in the records. Do not infer or invent details.
3. You may stress what is relevant to the user's question, but every project and every field must appear.

Output:
Open with one sentence on the common theme of the projects, then list the cards in input order.

Card format:
**<title>**
- **Tech Stack**: <techStack, comma-separated>
- **Services Offered**: <servicesOffered, comma-separated>
- **Solutions Implemented**: <solutionsImplemented, comma-separated>
- **Summary**: <summary>

Write "Not specified." for a field that is missing or empty. Keep the field names and order exactly as shown.`

const projectSummaryUserMessage = `Create a structured summary of all project records below.

User question:
%s

Project records (JSON):
%s`

const caseStudySummarySystemPrompt = `You write high-level narrative summaries of a consultancy's case studies.

Rules:
- Every case study in the JSON must appear in the summary. None may be left out.
- Cover each record's industry, technologies, solutionsProvided, services and detailedContent.
- You may emphasize what matters for the user's question but never drop a record or attribute.
- Write flowing paragraphs in a professional tone. No bullet points or tables.
- Do not invent information.`

const caseStudySummaryUserMessage = `Summarize the following case studies as one narrative.

First make sure every case study and all of its attributes are accounted for, then weave them into cohesive paragraphs that highlight what answers the user's question.

User question:
%s

Case studies (JSON):
%s`
