package llm

import (
	"fmt"
	"strings"

	"formvoice/agent/internal/types"
)

const extractSystemPrompt = "You extract answers for a voice form. Reply with only the exact answer " +
	"the user gave to the question, without quotes, labels or extra words. If the user gave no answer, reply with nothing."

const questionSystemPrompt = "You write short, friendly questions that a voice assistant asks to fill a form. " +
	"Reply with the question only."

func extractUserPrompt(f types.Field, question, utterance string) string {
	return fmt.Sprintf("Question: %s\nField: %s\nUser said: %s", question, f.DisplayName(), utterance)
}

func questionUserPrompt(f types.Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a casual, conversational question asking the user for the form field %q", f.DisplayName())
	if f.Type != "" {
		fmt.Fprintf(&b, " (input type %s)", f.Type)
	}
	b.WriteString(".")
	if len(f.Options) > 0 {
		fmt.Fprintf(&b, " Mention the available options: %s.", strings.Join(f.Options, ", "))
	}
	if f.Type == types.FieldCheckbox && len(f.Options) > 0 {
		b.WriteString(" The user may pick more than one.")
	}
	return b.String()
}
