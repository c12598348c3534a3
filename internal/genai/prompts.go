package genai

import "fmt"

const transcribePrompt = "Transcribe the following audio to plain text. Return only the transcript."

const compareSystemPrompt = `You are a medical documentation assistant. Compare a prior note to a new transcript. Return STRICT JSON only with keys: delta_summary (string[]), changes (object with keys new, resolved, worsened, improved, unchanged as string[]), nudges (array of objects with keys title, description, category, evidence_span; category must be "billing_or_completeness"; evidence_span quotes the transcript), safe_disclaimer (string). No markdown, no code fences.`

func compareUserPrompt(priorNote, currentTranscript string) string {
	return fmt.Sprintf("PRIOR NOTE:\n%s\n\nCURRENT TRANSCRIPT:\n%s\n\nRespond with JSON only.", priorNote, currentTranscript)
}

func titlePrompt(transcript string) string {
	return "Generate a concise, human-readable title for the following medical patient transcript.\n" +
		"- Keep it under 8 words.\n" +
		"- No quotes, no punctuation at the end.\n" +
		"- Return ONLY the title.\n\n" +
		"Transcript:\n" + transcript
}
