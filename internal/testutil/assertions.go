package testutil

import (
	"errors"
	"os"
	"reflect"
	"testing"
)

// RequireNoError fails the test immediately if err is non-nil.
func RequireNoError(t testing.TB, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireErrorIs fails the test unless err matches target.
func RequireErrorIs(t testing.TB, err, target error, msg string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: got %v, want %v", msg, err, target)
	}
}

// RequireEqual fails the test if got and want differ.
func RequireEqual[T any](t testing.TB, got, want T, msg string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s: got %#v, want %#v", msg, got, want)
	}
}

// RequireLen fails the test if s does not have n elements.
func RequireLen[T any](t testing.TB, s []T, n int, msg string) {
	t.Helper()
	if len(s) != n {
		t.Fatalf("%s: len = %d, want %d", msg, len(s), n)
	}
}

// RequireFile fails the test unless path exists and is non-empty.
func RequireFile(t testing.TB, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected file %s to be non-empty", path)
	}
}
