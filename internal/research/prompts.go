package research

// Prompt templates for the graph's LLM calls. Each call pairs one of these
// system prompts with a user prompt assembled from the current state.

const queryWriterPrompt = `You write one focused web search query for a research topic.
Consider what the running summary already covers and avoid repeating earlier queries.
Respond ONLY with strict JSON: {"rationale": "<one sentence>", "query": "<the search query>"}`

const summarizerCreatePrompt = `You are writing the first draft summary of web research results.
Write a coherent markdown summary of the results as they relate to the research topic.
Stay on topic, keep every factual claim attributable to the provided sources, and do not invent sources.
Return only the summary text, no preamble.`

const summarizerExtendPrompt = `You are extending an existing research summary with newly gathered results.
Integrate genuinely new information, do not repeat what the summary already says, and keep the
existing structure where it still fits. Stay on the research topic.
Return only the full updated summary text, no preamble.`

const reflectionPrompt = `You review a research summary for completeness against its topic.
Identify the most important remaining knowledge gap and a follow-up query that would close it.
Respond ONLY with strict JSON:
{"is_sufficient": <bool>, "knowledge_gap": "<one sentence>", "follow_up_query": "<search query>"}`

const verificationQuestionsPrompt = `You fact-check a research summary. Extract its most load-bearing factual
claims and turn each into one short, independently searchable verification question.
Respond ONLY with strict JSON: {"verification_questions": ["<question>", ...]}
Produce at most %d questions. An empty list is a valid answer when the summary makes no checkable claims.`

const verificationSynthesisPrompt = `You reconcile fact-check findings into a research summary.
For each verification result: if the evidence contradicts the summary, correct the claim;
if the evidence supports it, leave it; if the claim could not be verified, keep it but mark it
"(unverified)". Never silently delete a claim. Keep the summary's markdown structure.
Return only the full updated summary text, no preamble.`

const finalReportPrompt = `You produce the final polished research report in markdown.
Required structure:
## Summary
<executive summary of the findings>
## Key Findings
<bullet points of the main findings>
## Detailed Analysis
<the body of the research, organized by theme>
### Sources:
<one line per source, exactly: * **<title>**: <url> (Reliability: <High|Medium|Low> - <source type>)>
Base the report strictly on the provided summary and sources. Do not invent sources.`

const verdictPrompt = `You judge whether a piece of search evidence supports a claim-check question.
Respond ONLY with strict JSON: {"verdict": "<supported|contradicted|unverified>", "reason": "<one sentence>"}`
