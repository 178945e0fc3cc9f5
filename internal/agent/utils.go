package agent

import (
	"strings"
)

// SanitizeMessage escapes lone braces in user content so it can be embedded
// safely into prompt templates. A run of a single brace is doubled; runs of
// two or more are already escaped and pass through unchanged.
func SanitizeMessage(message string) string {
	runes := []rune(message)
	var b strings.Builder
	b.Grow(len(message))

	for i := 0; i < len(runes); {
		r := runes[i]
		if r != '{' && r != '}' {
			b.WriteRune(r)
			i++
			continue
		}

		runEnd := i
		for runEnd < len(runes) && runes[runEnd] == r {
			runEnd++
		}
		if runEnd-i == 1 {
			b.WriteRune(r)
			b.WriteRune(r)
		} else {
			for k := i; k < runEnd; k++ {
				b.WriteRune(runes[k])
			}
		}
		i = runEnd
	}

	return b.String()
}

// IsLastHumanMessage reports whether the message at index i is the final
// human turn of the conversation.
func IsLastHumanMessage(i int, messages []LlmMessage) bool {
	if messages[i].Role != RoleHuman {
		return false
	}
	for j := i + 1; j < len(messages); j++ {
		if messages[j].Role == RoleHuman {
			return false
		}
	}
	return true
}

// renderConversation flattens the chat history for classification and
// extraction prompts.
func renderConversation(messages []ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
