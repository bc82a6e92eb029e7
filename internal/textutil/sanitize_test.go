package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain.wav", "plain.wav"},
		{"a/b\\c:d", "a-b-c-d"},
		{"what?.wav", "what.wav"},
		{"  spaced.mp3  ", "spaced.mp3"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeObjectKeySegment(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"interview 03.wav", "interview_03.wav"},
		{"Już-nagrane.mp3", "Ju_-nagrane.mp3"},
		{"", "audio"},
		{"///", "audio"},
	}
	for _, tc := range cases {
		if got := SanitizeObjectKeySegment(tc.in); got != tc.want {
			t.Errorf("SanitizeObjectKeySegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
