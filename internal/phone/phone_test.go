package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
		err  bool
	}{
		{"formatted local mobile", "(44) 99999-9999", "5544999999999", false},
		{"already international", "5544999999999", "5544999999999", false},
		{"international missing a digit", "+55 44 9999-9999", "", true},
		{"international 14 digits", "55449999999991", "55449999999991", false},
		{"landline 10 digits", "4433334444", "554433334444", false},
		{"leading trunk zero", "044999999999", "5544999999999", false},
		{"too short", "123", "", true},
		{"empty", "", "", true},
		{"letters only", "call me", "", true},
		{"country code too short", "5544999", "", true},
		{"local too long", "449999999999", "", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(tc.in)
			if tc.err {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("expected ErrInvalidPhone for %q, got value=%q err=%v", tc.in, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalize_LocalNumbersGetCountryCode(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"1234567890", "12345678901", "4499998888", "44999998888"} {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if got != "55"+in {
			t.Fatalf("expected %q, got %q", "55"+in, got)
		}
	}
}
