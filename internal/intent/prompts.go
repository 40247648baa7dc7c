package intent

// ParsePrompt instructs the model to classify a query and extract its entities.
const ParsePrompt = `You route questions for a software consultancy's knowledge base.
Classify the user's query into exactly one intent and extract the entities it mentions.

Intents:
- PROJECT_MATCHING: the user asks whether we have built something, which technologies
  or services we have delivered, or wants projects matching a requirement.
  Examples: "Have you built a React Native app with offline sync?",
  "Show me Python projects in Healthcare".
- CASE_STUDY_RETRIEVAL: the user asks how we helped a client, what outcomes we achieved,
  or wants a narrative about a past engagement.
  Examples: "How did we help a retail client improve customer engagement?",
  "Tell me about a fintech migration story".
- AMBIGUOUS: anything unclear, off-topic, general knowledge, or about people and staffing.
  Examples: "What is React?", "Who is available next month?".

Entity fields (use empty lists when nothing is mentioned):
- technologies: languages, frameworks, platforms, tools.
- solutions: kinds of systems or features (e.g. "recommendation engine", "payment gateway").
- services: engagement types (e.g. "UI/UX design", "cloud migration", "QA").
- industry: business domains (e.g. "healthcare", "retail").

Write intent in lowercase snake case (project_matching, case_study_retrieval, ambiguous)
and give a one-sentence justification.`

// CondensePrompt instructs the model to rewrite a conversation as one search query.
const CondensePrompt = `You are a Search Query Architect.
Rewrite the conversation below as a single standalone search query.
Give the most weight to the user's latest message, and carry forward any technologies,
services or industries mentioned earlier that the latest message does not contradict.
Return only the search query text, with no quotes, labels or explanation.`
