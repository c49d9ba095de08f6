package reconcile

import "testing"

func TestNearDuplicateNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		names []string
		want  int
	}{
		{"distinct names", []string{"Ariel", "Jordan", "Maya"}, 0},
		{"spelling variant", []string{"Ariel", "Arielle"}, 1},
		{"phonetic variant", []string{"Catherine", "Katherine"}, 1},
		{"placeholders ignored", []string{"Speaker 1", "Speaker 2"}, 0},
		{"placeholder and name", []string{"Speaker 1", "Ariel"}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := nearDuplicateNames(tt.names); len(got) != tt.want {
				t.Errorf("nearDuplicateNames(%v)=%v, want %d pairs", tt.names, got, tt.want)
			}
		})
	}
}
