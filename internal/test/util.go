package test

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

func AssertEqual(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if a != b {
		t.Fatalf("%v != %v", a, b)
	}
}

func AssertEqualWithDiff(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if a != b {
		stringA := fmt.Sprintf("%v", a)
		stringB := fmt.Sprintf("%v", b)
		if strings.Contains(stringA, "\n") {
			color := stdoutIsTerminal()
			t.Fatal(Diff(stringB, stringA, color))
		} else {
			t.Fatalf("%v != %v", a, b)
		}
	}
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
