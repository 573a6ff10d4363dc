package rag

import (
	"strings"
	"testing"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name: "empty input",
			text: "   \n\n  ",
			size: 100,
			want: nil,
		},
		{
			name: "fits in one chunk",
			text: "quiet hours are from 23:00 to 07:00",
			size: 100,
			want: []string{"quiet hours are from 23:00 to 07:00"},
		},
		{
			name: "splits on paragraph boundary",
			text: "first paragraph here\n\nsecond paragraph here",
			size: 25,
			want: []string{"first paragraph here", "second paragraph here"},
		},
		{
			name: "falls back to line boundary",
			text: "line one text\nline two text",
			size: 15,
			want: []string{"line one text", "line two text"},
		},
		{
			name: "falls back to word boundary",
			text: "alpha beta gamma delta",
			size: 12,
			want: []string{"alpha beta", "gamma delta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text, tt.size, tt.overlap)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitText() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitText_RespectsSize(t *testing.T) {
	text := strings.Repeat("the dormitory handbook covers visiting hours and laundry rules. ", 50)

	for _, chunk := range SplitText(text, 120, 20) {
		if n := len([]rune(chunk)); n > 120 {
			t.Errorf("chunk length = %d runes, want <= 120: %q", n, chunk)
		}
	}
}

func TestSplitText_CoversAllContent(t *testing.T) {
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	text := strings.Join(words, " ")

	joined := strings.Join(SplitText(text, 15, 5), " ")
	for _, w := range words {
		if !strings.Contains(joined, w) {
			t.Errorf("chunks lost word %q", w)
		}
	}
}

func TestSplitText_UnbrokenRun(t *testing.T) {
	text := strings.Repeat("x", 250)

	chunks := SplitText(text, 100, 10)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 100 {
			t.Errorf("chunk[%d] length = %d runes, want <= 100", i, n)
		}
	}
}

func TestSplitText_MultibyteRunes(t *testing.T) {
	// Size is counted in runes, not bytes.
	text := strings.Repeat("宿舍規定", 30)

	for i, chunk := range SplitText(text, 50, 10) {
		if n := len([]rune(chunk)); n > 50 {
			t.Errorf("chunk[%d] length = %d runes, want <= 50", i, n)
		}
	}
}

func TestSplitText_OverlapLargerThanSize(t *testing.T) {
	// Degenerate overlap must not loop forever or produce empty chunks.
	chunks := SplitText(strings.Repeat("y", 80), 20, 30)
	if len(chunks) == 0 {
		t.Fatal("SplitText() = no chunks")
	}
	for i, chunk := range chunks {
		if chunk == "" {
			t.Errorf("chunk[%d] is empty", i)
		}
	}
}
