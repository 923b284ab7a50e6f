package dispatch

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/relaybot/internal/core"
)

// historyTrimmer bounds conversation history to a token budget, keeping
// the most recent turns. When the BPE tables are unavailable it falls
// back to a bytes/4 estimate.
type historyTrimmer struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
}

func newHistoryTrimmer(maxTokens int) *historyTrimmer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &historyTrimmer{enc: enc, maxTokens: maxTokens}
}

func (t *historyTrimmer) countTokens(text string) int {
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return len(text)/4 + 1
}

// trim walks backwards so the newest messages survive, then restores
// chronological order.
func (t *historyTrimmer) trim(history []core.Message) []core.Message {
	if t.maxTokens <= 0 {
		return history
	}

	total := 0
	cut := 0
	for i := len(history) - 1; i >= 0; i-- {
		total += t.countTokens(history[i].Text)
		if total > t.maxTokens {
			cut = i + 1
			break
		}
	}
	return history[cut:]
}
