package diff

import "testing"

func TestWords(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		wantOps []int
	}{
		{
			name:    "identical",
			a:       "the red house",
			b:       "the red house",
			wantOps: []int{0, 0, 0, 0, 0},
		},
		{
			name:    "substitution",
			a:       "a red house",
			b:       "a blue house",
			wantOps: []int{0, 0, -1, 1, 0, 0},
		},
		{
			name:    "empty against text",
			a:       "",
			b:       "hello",
			wantOps: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Words(tt.a, tt.b)
			if len(got) != len(tt.wantOps) {
				t.Fatalf("Words() returned %d deltas, want %d: %v", len(got), len(tt.wantOps), got)
			}
			for i, d := range got {
				if d.Op != tt.wantOps[i] {
					t.Errorf("delta %d (%q) op = %d, want %d", i, d.Text, d.Op, tt.wantOps[i])
				}
			}
		})
	}
}

func TestTokenizeKeepsContractions(t *testing.T) {
	got := tokenize("don't stop")
	want := []string{"don't", " ", "stop"}
	if len(got) != len(want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}
