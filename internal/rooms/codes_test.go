package rooms

import (
	"regexp"
	"testing"
)

func TestGenerateCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z]{4}$`)

	for i := 0; i < 100; i++ {
		code, err := GenerateCode(DefaultCodeLength)
		if err != nil {
			t.Fatalf("GenerateCode() error: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Errorf("GenerateCode() = %q, doesn't match expected pattern", code)
		}
	}
}

func TestGenerateCode_Length(t *testing.T) {
	for _, n := range []int{1, 4, 8} {
		code, err := GenerateCode(n)
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != n {
			t.Errorf("GenerateCode(%d) length = %d", n, len(code))
		}
	}

	code, err := GenerateCode(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != DefaultCodeLength {
		t.Errorf("GenerateCode(0) length = %d, want %d", len(code), DefaultCodeLength)
	}
}

func TestGenerateCode_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	dupes := 0
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode(DefaultCodeLength)
		if err != nil {
			t.Fatal(err)
		}
		if seen[code] {
			dupes++
		}
		seen[code] = true
	}
	// 26^4 = 456976 combinations
	if dupes > 10 {
		t.Errorf("too many duplicate codes: %d out of 1000", dupes)
	}
}
