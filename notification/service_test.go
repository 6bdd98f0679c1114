package notification

import "testing"

func TestResourceType(t *testing.T) {
	cases := map[Type]string{
		TypeGraphShare:      "graph",
		TypeAssistantShare:  "assistant",
		TypeCollectionShare: "collection",
	}
	for typ, want := range cases {
		if got := string(typ.ResourceType()); got != want {
			t.Errorf("%s.ResourceType() = %s, want %s", typ, got, want)
		}
	}
}
