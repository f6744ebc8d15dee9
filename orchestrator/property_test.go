package orchestrator

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/llm"
)

func genRawMessage() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("user", "assistant"),
		gen.AlphaString(),
		gen.OneConstOf("", "customer_mgmt", "product_mgmt"),
	).Map(func(vals []interface{}) RawMessage {
		m := RawMessage{
			Role: vals[0].(string),
			Text: vals[1].(string),
		}
		if m.Role == "assistant" {
			m.AgentTag = vals[2].(string)
		}
		return m
	})
}

func TestProperty_NormalizationIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("normalizing normalized output is a no-op", prop.ForAll(
		func(raw []RawMessage) bool {
			if len(raw) == 0 {
				return true
			}
			first, err := NormalizeConversation(raw)
			if err != nil {
				t.Logf("first normalization failed: %v", err)
				return false
			}
			again := make([]RawMessage, 0, len(first))
			for _, m := range first {
				again = append(again, RawMessage{Role: string(m.Role), Text: m.Text, AgentTag: string(m.AgentTag)})
			}
			second, err := NormalizeConversation(again)
			if err != nil {
				t.Logf("second normalization failed: %v", err)
				return false
			}
			return reflect.DeepEqual(first, second)
		},
		gen.SliceOf(genRawMessage()),
	))

	properties.TestingRun(t)
}

func TestProperty_SelectorIgnoresMessagesAfterNearestTag(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Appending untagged messages never changes the selection: only the
	// nearest tagged assistant message matters.
	properties.Property("untagged suffix does not change selection", prop.ForAll(
		func(raw []RawMessage, suffixTexts []string) bool {
			conv, err := NormalizeConversation(append([]RawMessage{{Role: "user", Text: "hi"}}, raw...))
			if err != nil {
				t.Logf("normalization failed: %v", err)
				return false
			}
			before := SelectInitialAgent(conv, capability.AgentCustomerMgmt)

			extended := append([]ConversationMessage(nil), conv...)
			for i, text := range suffixTexts {
				role := llm.RoleUser
				if i%2 == 1 {
					role = llm.RoleAssistant // untagged
				}
				extended = append(extended, ConversationMessage{Role: role, Text: text})
			}
			after := SelectInitialAgent(extended, capability.AgentCustomerMgmt)
			return before == after
		},
		gen.SliceOf(genRawMessage()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
