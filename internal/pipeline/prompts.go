package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/framelens/orchestrator/internal/domain"
)

const labelInstructions = `Look at this image carefully. Provide a concise structural description of what you see.

Rules:
1. Be specific about the TYPE of content (e.g., "Python code in a dark IDE", "network topology diagram", "photograph of a circuit board")
2. Keep it under 15 words.
3. Do NOT interpret or analyze the content, just classify what it visually IS.
4. Return ONLY the description, nothing else.`

const judgeInstructions = `You are an independent visual verification judge. Your ONLY job is to determine if the following answer accurately describes what is shown in the provided image.

Rules:
1. Look at the image carefully and independently.
2. Do NOT assume the answer is correct.
3. Check if the key visual elements in the image match the answer's claims.
4. Respond with ONLY "AGREE" or "DISAGREE" followed by a one-sentence explanation.`

func sufficiencyPrompt(visualLabel, transcriptCtx, query string) string {
	return fmt.Sprintf(`Given this transcript context and visual description, can you answer the user's question?

Visual: %s
Transcript: %s
Question: %s

Respond ONLY "YES" or "NO".`, visualLabel, clip(transcriptCtx, 500), query)
}

func judgePrompt(draftAnswer string) string {
	return fmt.Sprintf("ANSWER TO VERIFY: %q", draftAnswer)
}

func synthesisPrompt(rc *domain.RunContext, st domain.AgentState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "USER QUESTION: %s\n\n", rc.Query)
	fmt.Fprintf(&b, `VISUAL CONTEXT:
- Image 1 (FULL FRAME): The complete video frame for macro context
- Image 2 (CROPPED SNIPPET): The specific area the user highlighted at coordinates [x=%.0f, y=%.0f, w=%.0f, h=%.0f]
- Visual Classification: %s

`, rc.BBox[0], rc.BBox[1], rc.BBox[2], rc.BBox[3], st.VisualLabel)

	transcriptCtx := st.TranscriptContext
	if transcriptCtx == "" {
		transcriptCtx = "[No transcript available for this video]"
	}
	fmt.Fprintf(&b, "TRANSCRIPT CONTEXT (what the video creator was saying):\n%s\n\n", clip(transcriptCtx, 1500))

	toolData := st.ToolData
	if toolData == "" {
		toolData = "None needed"
	}
	fmt.Fprintf(&b, "SUPPLEMENTARY DATA:\n%s\n", clip(toolData, 500))

	if st.CorrectionAttempts > 0 && st.Guidance != "" {
		fmt.Fprintf(&b, `
CORRECTION ATTEMPT #%d
Your previous answer was flagged by the validation guardrail as potentially inaccurate.
Rejection reason: %s
Previous validation score: %.2f
Please RE-EXAMINE the images more carefully and provide a corrected answer.
Focus specifically on what the CROPPED IMAGE actually shows, not what you assume.
`, st.CorrectionAttempts, st.Guidance, st.Confidence)
	}

	b.WriteString(`
INSTRUCTIONS:
1. Focus your answer on what the CROPPED SNIPPET shows
2. Use the FULL FRAME for surrounding context (what else is on screen)
3. Use the TRANSCRIPT to understand what the creator was explaining at this moment
4. Be specific, technical, and accurate
5. If you're uncertain about any detail, say so explicitly
6. Keep the answer concise but comprehensive (under 250 words)`)

	return b.String()
}

// clip truncates s to at most n bytes without splitting a UTF-8 rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
