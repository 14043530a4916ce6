package testutil

import "testing"

// Given, When, and Then helpers keep test descriptions readable without pulling
// in a heavy BDD framework.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}

// And continues the previous step. It stops the enclosing scenario on
// failure so later steps never run against a broken precondition.
func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run("And "+desc, fn) {
		t.FailNow()
	}
}
