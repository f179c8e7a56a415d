package config

// DefaultPrompts returns the compiled-in oracle prompt templates. They all
// demand plain JSON so the shared parser can handle replies uniformly.
func DefaultPrompts() Prompts {
	return Prompts{
		Extraction: `Extract atomic factual statements ("claims") from the following research text.

For each claim provide:
- "text": the claim as a single self-contained sentence
- "type": one of "finding", "methodology", "claim", "hypothesis", "limitation"
- "confidence": how clearly the text supports the claim, 0.0 to 1.0
- "topics": 1-4 short subject labels the claim is about

Return a JSON object: {"claims": [{"text": "...", "type": "...", "confidence": 0.9, "topics": ["..."]}]}
Return only JSON.

Text:
%s`,

		Corrective: `Your previous reply was not valid JSON. Reply again with only the JSON object in the requested shape: {"claims": [...]}. No prose, no code fences.`,

		Contradiction: `Do these two research claims contradict each other? Be conservative: only report a contradiction when the claims cannot both be true.

Claim A: %s
Claim B: %s

Return a JSON object:
{"is_contradiction": true/false, "description": "why they conflict", "severity": "low"/"medium"/"high", "confidence": 0.0-1.0}
Return only JSON.`,

		Gaps: `You are analyzing a research corpus. Below is a map from topic to the claims referencing it:

%s

Identify under-explored areas: missing methodological coverage, topics studied in isolation, temporal blind spots.

Return a JSON object:
{"gaps": [{"description": "...", "topic_labels": ["..."], "gap_type": "structural"/"density"/"methodological"/"temporal", "significance": 0.0-1.0}]}
Return only JSON.`,

		Questions: `A knowledge gap was detected in a research corpus:

Gap: %s
Related claims:
%s

Propose 3-5 research questions that would address this gap. For each provide:
- "question": the question text
- "rationale": why it addresses the gap
- "impact": expected scientific impact, 1-10
- "feasibility": how practical it is to investigate, 1-10

Return a JSON object: {"questions": [{"question": "...", "rationale": "...", "impact": 7, "feasibility": 5}]}
Return only JSON.`,
	}
}
