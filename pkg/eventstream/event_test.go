package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals a turn event with the expected keys", func() {
		event := eventstream.NewTurnPersistedEvent("user_123", eventstream.TurnPersisted{
			MessageIDs:    []string{"m1", "m2"},
			Retained:      2,
			HistoryLength: 5,
		})

		data, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKeyWithValue("event_type", eventstream.EventTypeTurnPersisted))
		Expect(decoded).To(HaveKeyWithValue("user_id", "user_123"))
		Expect(decoded).To(HaveKeyWithValue("schema_version", BeNumerically("==", 1)))
		Expect(decoded).To(HaveKey("turn"))
		Expect(decoded).NotTo(HaveKey("memory"))
		Expect(decoded["event_id"]).To(HavePrefix("evt_"))
	})

	It("marshals a memory event without a turn", func() {
		event := eventstream.NewMemorySavedEvent("user_123", eventstream.MemorySaved{
			FactID:      "f1",
			ReplacedIDs: []string{"f0"},
		})

		data, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"memory":{"fact_id":"f1","replaced_ids":["f0"]}`))
		Expect(string(data)).NotTo(ContainSubstring(`"turn"`))
	})
})
