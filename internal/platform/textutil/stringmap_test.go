package textutil

import (
	"reflect"
	"testing"
)

func TestParseKeyValues(t *testing.T) {
	t.Run("trims and lower-cases keys", func(t *testing.T) {
		actual := ParseKeyValues(" Kathmandu = 100 , pokhara=150,broken, =5,empty= ")
		expected := map[string]string{
			"kathmandu": "100",
			"pokhara":   "150",
		}
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for blank input", func(t *testing.T) {
		if ParseKeyValues("  ") != nil {
			t.Fatalf("expected nil for blank input")
		}
		if ParseKeyValues("novalue") != nil {
			t.Fatalf("expected nil when nothing parses")
		}
	})
}
