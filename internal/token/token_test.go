package token

import "testing"

func TestPositionString(t *testing.T) {
	cases := []struct {
		pos  Position
		want string
	}{
		{Position{Line: 3, Column: 7}, "3:7"},
		{Position{Offset: 12}, "-"},
		{Position{}, "-"},
	}
	for _, tc := range cases {
		if got := tc.pos.String(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
		if tc.pos.IsValid() != (tc.want != "-") {
			t.Fatalf("unexpected validity for %#v", tc.pos)
		}
	}
}
