package engine

import (
	"strings"

	"github.com/salonhq/booking-assistant/internal/conversations"
)

// stateTransitions is the dialogue state machine. Staying in the current
// state is always allowed; everything else must be listed here. A completed
// conversation re-opens into collecting_info when the user starts a new
// booking request.
var stateTransitions = map[conversations.State][]conversations.State{
	conversations.StateGreeting:       {conversations.StateCollectingInfo},
	conversations.StateCollectingInfo: {conversations.StateConfirming},
	conversations.StateConfirming:     {conversations.StateCollectingInfo, conversations.StateCompleted},
	conversations.StateCompleted:      {conversations.StateCollectingInfo},
}

// nextState validates a proposed transition. Invalid or unknown proposals
// keep the conversation where it is.
func nextState(current, proposed conversations.State) conversations.State {
	if proposed == "" || !proposed.Valid() || proposed == current {
		return current
	}
	for _, allowed := range stateTransitions[current] {
		if allowed == proposed {
			return proposed
		}
	}
	return current
}

var confirmWords = []string{"yes", "confirm", "correct", "right", "ok", "okay", "sure", "yep"}

var rejectWords = []string{"no", "wrong", "change", "incorrect", "not right", "cancel"}

// detectConfirmation scans a confirming-state user message for an explicit
// yes/no. The keyword check is deterministic and overrides whatever state the
// model proposed, so a plain "yes" always finalizes.
func detectConfirmation(content string) (confirmed, detected bool) {
	text := strings.ToLower(strings.TrimSpace(content))
	if text == "" {
		return false, false
	}
	for _, w := range rejectWords {
		if containsWord(text, w) {
			return false, true
		}
	}
	for _, w := range confirmWords {
		if containsWord(text, w) {
			return true, true
		}
	}
	return false, false
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isWordChar(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isWordChar(text[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '\''
}
