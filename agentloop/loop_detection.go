package agentloop

import (
	"crypto/sha256"
	"fmt"
)

// DefaultLoopWindow is the number of recent tool uses DetectLoop inspects.
const DefaultLoopWindow = 6

func toolUseSignature(use ToolUse) string {
	h := sha256.Sum256(use.Arguments)
	return fmt.Sprintf("%s:%x", use.Name, h[:8])
}

// recentToolUseSignatures returns up to count signatures of the latest tool
// uses in chronological order.
func recentToolUseSignatures(turns []Turn, count int) []string {
	var sigs []string
	for i := len(turns) - 1; i >= 0 && len(sigs) < count; i-- {
		uses := turns[i].ToolUses()
		for j := len(uses) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, toolUseSignature(uses[j]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last window tool uses repeat a pattern of
// length 1, 2 or 3.
func DetectLoop(turns []Turn, window int) bool {
	if window <= 0 {
		return false
	}
	sigs := recentToolUseSignatures(turns, window)
	if len(sigs) < window {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if window%patternLen != 0 || window == patternLen {
			continue
		}
		repeats := true
		for i := patternLen; i < window && repeats; i++ {
			repeats = sigs[i] == sigs[i%patternLen]
		}
		if repeats {
			return true
		}
	}
	return false
}
