package utils

import (
	"github.com/pkoukk/tiktoken-go"
)

const tokenizerModel = "gpt-4-0613"

// TruncateTokens cuts text to at most max tokens. Text at or under the
// budget comes back unchanged.
func TruncateTokens(text string, max int) (string, error) {
	tkm, err := tiktoken.EncodingForModel(tokenizerModel)
	if err != nil {
		return text, err
	}
	ids := tkm.Encode(text, nil, nil)
	if len(ids) <= max {
		return text, nil
	}
	return tkm.Decode(ids[:max]), nil
}
