package permission

import "testing"

func TestMeetsLevel(t *testing.T) {
	cases := []struct {
		t    TargetType
		have Level
		want Level
		ok   bool
	}{
		{TargetGraph, LevelAdmin, LevelAccess, true},
		{TargetGraph, LevelAccess, LevelAdmin, false},
		{TargetAssistant, LevelOwner, LevelEditor, true},
		{TargetAssistant, LevelViewer, LevelEditor, false},
		{TargetCollection, LevelEditor, LevelEditor, true},
	}

	for _, c := range cases {
		if got := meetsLevel(c.t, c.have, c.want); got != c.ok {
			t.Errorf("meetsLevel(%s, %s, %s) = %v, want %v", c.t, c.have, c.want, got, c.ok)
		}
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel(TargetGraph, LevelAccess) {
		t.Error("expected access to be valid for graph")
	}
	if ValidLevel(TargetGraph, LevelOwner) {
		t.Error("owner should not be a valid graph level")
	}
	if !ValidLevel(TargetCollection, LevelOwner) {
		t.Error("expected owner to be valid for collection")
	}
}
