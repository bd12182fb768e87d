package analysis

import "testing"

func TestDetectWideningBreakout(t *testing.T) {
	spreads := make([]float64, 0, 11)
	for i := 0; i < 10; i++ {
		spreads = append(spreads, 1.0)
	}
	spreads = append(spreads, 5.0)

	flags := DetectWidening(spreads, 0.1, 10)
	if len(flags) != len(spreads) {
		t.Fatalf("len(flags) = %d, want %d", len(flags), len(spreads))
	}
	for i := 0; i < 10; i++ {
		if flags[i] {
			t.Fatalf("flag %d set with insufficient history", i)
		}
	}
	if !flags[10] {
		t.Fatal("expected breakout at index 10")
	}
}

func TestDetectWideningShortSeries(t *testing.T) {
	cases := [][]float64{
		nil,
		{1},
		{1, 100, 1000, 10000, 1e6, 1e7, 1e8, 1e9, 1e10},
	}
	for _, spreads := range cases {
		flags := DetectWidening(spreads, 0, 10)
		if len(flags) != len(spreads) {
			t.Fatalf("len(flags) = %d, want %d", len(flags), len(spreads))
		}
		for i, f := range flags {
			if f {
				t.Fatalf("flag %d set for series shorter than window: %v", i, spreads)
			}
		}
	}
}

func TestDetectWideningExcludesCurrentSample(t *testing.T) {
	// window of 2: baseline for index 2 is mean(1, 3) = 2
	spreads := []float64{1, 3, 2.1, 2.0}
	flags := DetectWidening(spreads, 0.04, 2)
	want := []bool{false, false, true, false}
	for i := range want {
		if flags[i] != want[i] {
			t.Fatalf("flags = %v, want %v", flags, want)
		}
	}
}

func TestDetectWideningDefaultWindow(t *testing.T) {
	spreads := make([]float64, 12)
	for i := range spreads {
		spreads[i] = 1
	}
	spreads[11] = 2
	flags := DetectWidening(spreads, 0.5, 0)
	if !flags[11] || flags[10] {
		t.Fatalf("unexpected flags with default window: %v", flags)
	}
}
