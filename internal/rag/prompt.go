package rag

import (
	"fmt"
	"strings"
	"time"
)

// promptTemplate grounds the model strictly in the retrieved context.
// %s placeholders: current date, context block, question.
const promptTemplate = `You are the dormitory support assistant. Your job is to give students direct, concise, and helpful answers.

MANDATORY RULES:
1. Answer ONLY from the information in the CONTEXT section. Do not infer, invent, or add information from outside it.
2. Tone: friendly, professional, and clear.
3. Answer the question directly; avoid openers like "According to the context..." or "Here is what I found...".
4. If the CONTEXT contains no answer, reply along the lines of: "Sorry, I checked but could not find information about this. Please contact the dormitory management board for further help."
5. Make the answer as complete as the context allows.

CONTEXT:
--- Data snapshot as of %s ---
%s
--- END CONTEXT ---

Student question:
%s

Give the direct answer:`

// buildPrompt assembles the grounded prompt. Chunk contents are collapsed
// to single-line text so stray newlines in the source cannot break the
// context framing.
func buildPrompt(chunks []Chunk, question string, now time.Time) string {
	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		lines = append(lines, strings.Join(strings.Fields(c.Content), " "))
	}
	return fmt.Sprintf(promptTemplate,
		now.Format("02/01/2006"),
		strings.Join(lines, "\n"),
		question,
	)
}
