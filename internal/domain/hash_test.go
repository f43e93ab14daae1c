package domain

import "testing"

func TestContentHashNormalization(t *testing.T) {
	base := ContentHash("What is the capital of France?", "Paris", "")

	same := []struct {
		name    string
		q, a, c string
	}{
		{"identical", "What is the capital of France?", "Paris", ""},
		{"case differs", "WHAT IS THE CAPITAL OF FRANCE?", "paris", ""},
		{"surrounding whitespace", "  What is the capital of France?\n", "\tParis  ", ""},
	}
	for _, tc := range same {
		if got := ContentHash(tc.q, tc.a, tc.c); got != base {
			t.Errorf("%s: hash differs from base", tc.name)
		}
	}

	windows := ContentHash("What is the capital\r\nof France?", "Paris", "")
	unix := ContentHash("What is the capital\nof France?", "Paris", "")
	if windows != unix {
		t.Error("line-ending style should not change the hash")
	}
}

func TestContentHashFieldBoundary(t *testing.T) {
	if ContentHash("ab", "c", "") == ContentHash("a", "bc", "") {
		t.Error("question/answer boundary should be part of the hash")
	}
	if ContentHash("q", "ab", "c") == ContentHash("q", "a", "bc") {
		t.Error("answer/context boundary should be part of the hash")
	}
}

func TestContentHashDiffers(t *testing.T) {
	if ContentHash("q", "a1", "") == ContentHash("q", "a2", "") {
		t.Error("different answers should hash differently")
	}
	if ContentHash("q", "a", "history") == ContentHash("q", "a", "geography") {
		t.Error("different context should hash differently")
	}
}
