package history

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/memoir/pkg/llm"
)

// encode serializes messages for the cache, preserving order.
func encode(msgs []llm.Message) ([]string, error) {
	out := make([]string, 0, len(msgs))
	for i := range msgs {
		data, err := json.Marshal(&msgs[i])
		if err != nil {
			return nil, fmt.Errorf("encoding message %s: %w", msgs[i].ID, err)
		}
		out = append(out, string(data))
	}
	return out, nil
}

// decode parses one cache entry.
func decode(entry string) (llm.Message, error) {
	var msg llm.Message
	if err := json.Unmarshal([]byte(entry), &msg); err != nil {
		return llm.Message{}, fmt.Errorf("decoding cached message: %w", err)
	}
	if !msg.Role.Valid() {
		return llm.Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}
	return msg, nil
}
