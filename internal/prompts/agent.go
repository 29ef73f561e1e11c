package prompts

import "strings"

// MalformedResponseNudge is injected after the model produced a reply
// the loop could not use (empty text, unparsable tool arguments, or a
// provider error). It gives the model another attempt within the same
// turn.
const MalformedResponseNudge = "Your previous reply could not be processed. Either answer the user in plain text, or call one of the available tools with valid JSON arguments."

// EmptyResponseFallback is the user-facing message returned when the
// iteration cap is reached and the model never composed any text.
const EmptyResponseFallback = "I gathered some information but wasn't able to finish composing an answer. Could you rephrase or narrow down your request?"

// TurnFailedApology is the fixed, non-leaking reply for a failed turn.
const TurnFailedApology = "I apologize, but I encountered an error processing your request. Please try again."

// IterationCapPrompt asks for a best-effort final answer once the loop
// has used every tool round it is allowed. tools lists the names
// already called this turn.
func IterationCapPrompt(tools []string) string {
	var sb strings.Builder
	sb.WriteString("You have reached the limit of tool calls for this request. ")
	if len(tools) > 0 {
		sb.WriteString("You already called: ")
		sb.WriteString(strings.Join(tools, ", "))
		sb.WriteString(". ")
	}
	sb.WriteString("Using only the tool results above, give the user the best answer you can now. Do not request any more tools.")
	return sb.String()
}
