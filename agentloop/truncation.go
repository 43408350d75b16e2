package agentloop

import "fmt"

// TruncateOutput keeps the head and tail of output so that at most maxChars
// characters of the original survive, with a marker in the middle. Characters
// are runes, so multi-byte text is never split. A non-positive maxChars
// disables truncation.
func TruncateOutput(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	runes := []rune(output)
	if len(runes) <= maxChars {
		return output
	}
	half := maxChars / 2
	removed := len(runes) - 2*half
	return string(runes[:half]) +
		fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
			"If you need to see specific parts, re-run the tool with more targeted parameters.]\n\n", removed) +
		string(runes[len(runes)-half:])
}
