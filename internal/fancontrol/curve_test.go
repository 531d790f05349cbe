package fancontrol

import "testing"

func TestDutyFor_Boundaries(t *testing.T) {
	for _, tempC := range []int{-5, 0, 10, 24, 25} {
		if got := DutyFor(tempC); got != 77 {
			t.Fatalf("DutyFor(%d)=%d want 77", tempC, got)
		}
	}
	for _, tempC := range []int{60, 61, 80, 150} {
		if got := DutyFor(tempC); got != 255 {
			t.Fatalf("DutyFor(%d)=%d want 255", tempC, got)
		}
	}
	if got := DutyFor(26); got != 82 {
		t.Fatalf("DutyFor(26)=%d want 82", got)
	}
	if got := DutyFor(59); got != 247 {
		t.Fatalf("DutyFor(59)=%d want 247", got)
	}
}

func TestDutyFor_Staircase(t *testing.T) {
	for tempC := 27; tempC <= 59; tempC++ {
		prev := DutyFor(tempC - 1)
		cur := DutyFor(tempC)
		if int(cur)-int(prev) != 5 {
			t.Fatalf("DutyFor(%d)=%d DutyFor(%d)=%d want step +5", tempC-1, prev, tempC, cur)
		}
	}
}

// The table must agree pointwise with the arithmetic form
// 77 + min(5*(t-25), 178), including at 58 and 59 where the clamp would
// first be suspected of biting.
func TestDutyFor_TableMatchesFormula(t *testing.T) {
	for tempC := 26; tempC <= 59; tempC++ {
		step := 5 * (tempC - 25)
		if step > 178 {
			step = 178
		}
		want := uint8(77 + step)
		if got := DutyFor(tempC); got != want {
			t.Fatalf("DutyFor(%d)=%d want %d", tempC, got, want)
		}
	}
}

func TestDutyFor_Monotone(t *testing.T) {
	prev := DutyFor(0)
	for tempC := 1; tempC <= 150; tempC++ {
		cur := DutyFor(tempC)
		if cur < prev {
			t.Fatalf("DutyFor(%d)=%d below DutyFor(%d)=%d", tempC, cur, tempC-1, prev)
		}
		prev = cur
	}
}
