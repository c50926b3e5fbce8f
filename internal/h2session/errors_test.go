package h2session

import "testing"

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad preface", ErrBadPreface, true},
		{"alpn mismatch", ErrALPNMismatch, true},
		{"settings timeout", ErrSettingsTimeout, true},
		{"callback failure", ErrCallbackFailure, true},
		{"temporal callback failure", ErrTemporalCallbackFailure, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsFatal(tc.err); got != tc.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
