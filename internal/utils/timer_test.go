package utils

import (
	"testing"
	"time"
)

// TestTimer_Stop_FreezesDuration verifies that Stop captures a positive
// duration and that later calls do not move it.
func TestTimer_Stop_FreezesDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(2 * time.Millisecond)

	first := timer.Stop()
	if first <= 0 {
		t.Fatalf("expected positive duration, got %v", first)
	}

	time.Sleep(2 * time.Millisecond)
	if second := timer.Stop(); second != first {
		t.Errorf("expected second Stop to return %v, got %v", first, second)
	}
	if elapsed := timer.Elapsed(); elapsed != first {
		t.Errorf("expected Elapsed after Stop to return %v, got %v", first, elapsed)
	}
}

// TestTimer_Elapsed_WhileRunning verifies that Elapsed keeps growing until Stop.
func TestTimer_Elapsed_WhileRunning(t *testing.T) {
	timer := NewTimer()
	first := timer.Elapsed()
	time.Sleep(2 * time.Millisecond)
	if second := timer.Elapsed(); second <= first {
		t.Errorf("expected Elapsed to grow, got %v then %v", first, second)
	}
}
