package app

import "testing"

func TestInterrupt_SetAndReset(t *testing.T) {
	in := &Interrupt{}
	if in.Set() {
		t.Fatal("zero-value Interrupt should not be set")
	}

	in.flag.Store(true)
	if !in.Set() {
		t.Fatal("expected Set() to report true after flag is stored")
	}

	in.Reset()
	if in.Set() {
		t.Fatal("expected Set() to report false after Reset")
	}
	if in.count.Load() != 0 {
		t.Fatal("expected Reset to clear the signal count")
	}
}
