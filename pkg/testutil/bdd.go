package testutil

import "testing"

// Given, When, Then and And name nested subtests as scenario steps, so a
// failing handler test reads as "Given a user/When a profile is saved/Then ...".
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn)
}

// And continues the enclosing step with a further outcome.
func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "And", desc, fn)
}

// step runs fn as a subtest. A failure in a Given or When stops the sibling
// steps that follow it, since later steps depend on its state.
func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	ok := t.Run(keyword+" "+desc, fn)
	if !ok && (keyword == "Given" || keyword == "When") {
		t.FailNow()
	}
}
