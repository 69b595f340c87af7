package clearance

import (
	"errors"
	"testing"
)

func TestHighestLevel(t *testing.T) {
	cases := []struct {
		name  string
		roles []string
		want  int
	}{
		{"mixed", []string{"Level-2", "Level-7 | VIP", "Security"}, 7},
		{"short form", []string{"L3", "l5"}, 5},
		{"case insensitive", []string{"LEVEL-10"}, 10},
		{"padded", []string{"  Level-4  "}, 4},
		{"none", []string{"Security", "Member"}, 0},
		{"empty", nil, 0},
		{"word prefix", []string{"Lockdown Team", "Lead", "Level-", "Level-x"}, 0},
		{"suffix glued", []string{"Level-4abc"}, 0},
		{"not leading", []string{"Staff Level-9"}, 0},
		{"overflow", []string{"Level-99999999999999999999999", "L2"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HighestLevel(tc.roles); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	level, err := Parse("site director")
	if err != nil || level != SiteDirector {
		t.Fatalf("expected site director, got %q %v", level, err)
	}
	level, err = Parse("l4")
	if err != nil || level != L4 {
		t.Fatalf("expected L4, got %q %v", level, err)
	}
	if _, err := Parse("L9"); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected invalid level, got %v", err)
	}
}

func TestRankOrder(t *testing.T) {
	levels := Levels()
	for i := 1; i < len(levels); i++ {
		if levels[i].Rank() <= levels[i-1].Rank() {
			t.Fatalf("rank not increasing at %s", levels[i])
		}
	}
	if Level("bogus").Rank() != 0 || Level("bogus").Valid() {
		t.Fatalf("unknown level should have rank 0")
	}
	if Lowest.Rank() != 1 {
		t.Fatalf("lowest should rank 1")
	}
}
