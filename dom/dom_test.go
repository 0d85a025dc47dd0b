package dom

import "testing"

func TestContainsAny(t *testing.T) {
	cases := []struct {
		text string
		kws  []string
		want bool
	}{
		{"Show transcript", []string{"transcript"}, true},
		{"SHOW TRANSCRIPT", []string{"transcript"}, true},
		{"Subtitles/CC (Captions)", []string{"transcript", "caption"}, true},
		{"Playback speed", []string{"transcript", "caption"}, false},
		{"anything", nil, false},
		{"anything", []string{""}, false},
	}
	for _, c := range cases {
		if got := ContainsAny(c.text, c.kws); got != c.want {
			t.Errorf("ContainsAny(%q, %v) = %v, want %v", c.text, c.kws, got, c.want)
		}
	}
}
