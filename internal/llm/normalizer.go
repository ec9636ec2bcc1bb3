package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const normalizePrompt = `You convert place names into the canonical English city name used by geocoders.
Reply with the city name only, no punctuation, no explanation.
If the input is already a canonical English city name, repeat it unchanged.`

const maxNormalizedLength = 80

// Normalizer asks the model for a canonical English place name
type Normalizer struct {
	completer Completer
}

func NewNormalizer(completer Completer) *Normalizer {
	return &Normalizer{completer: completer}
}

// Normalize returns the model's canonical name. Multi-line or oversized answers are rejected.
func (n *Normalizer) Normalize(ctx context.Context, name string) (string, error) {
	reply, err := n.completer.Complete(ctx, []Message{
		{Role: RoleSystem, Content: normalizePrompt},
		{Role: RoleUser, Content: name},
	})
	if err != nil {
		return "", err
	}

	reply = strings.Trim(strings.TrimSpace(reply), `"'.`)
	if reply == "" || strings.ContainsAny(reply, "\r\n") || utf8.RuneCountInString(reply) > maxNormalizedLength {
		return "", fmt.Errorf("llm: unusable normalization %q", reply)
	}
	return reply, nil
}
