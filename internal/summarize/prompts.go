package summarize

// Prompt templates for the local instruct model. Low temperature plus the
// explicit JSON contract keeps output parseable; parse failures still
// degrade to empty results rather than halting the pipeline.

const systemPrompt = `You are a professional meeting assistant. Your job is to analyze meeting transcripts and extract structured information accurately.

Rules:
- Only include information that was EXPLICITLY mentioned in the transcript
- Never invent, assume, or hallucinate details
- If something is unclear, mark it with [UNCLEAR]
- Be concise and professional
- Output valid JSON only`

const windowPrompt = `Analyze this meeting transcript segment and extract:
1. Key discussion points
2. Any decisions made
3. Any action items mentioned (with owner if stated)

Transcript:
%s

Respond in this JSON format:
{
  "key_points": ["point 1", "point 2"],
  "decisions": ["decision 1"],
  "action_items": ["action 1 - Owner: name or UNASSIGNED"]
}`

const finalPrompt = `You have these partial summaries from different segments of a meeting:

%s

Combine them into one final comprehensive meeting summary.

Respond in this JSON format:
{
  "action_items": ["item 1", "item 2"],
  "decisions_made": ["decision 1"],
  "key_discussion_points": ["point 1", "point 2"],
  "follow_up_email_draft": "Professional email draft here summarizing the meeting outcomes"
}`
