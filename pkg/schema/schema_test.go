package schema

import "testing"

func TestStoryFirstLine(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single line", "Once upon a time.", "Once upon a time."},
		{"multi line", "Once upon a time.\nThe end.", "Once upon a time."},
		{"leading blanks", "\n\n  Once upon a time.\nThe end.", "Once upon a time."},
		{"empty", "", ""},
		{"only whitespace", "  \n\t\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Story{Text: tt.text}
			if got := s.FirstLine(); got != tt.want {
				t.Errorf("FirstLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoryResponseFormat(t *testing.T) {
	format := StoryResponseFormat()
	if format.OfJSONSchema == nil {
		t.Fatal("expected a JSON schema response format")
	}
	if format.OfJSONSchema.JSONSchema.Name != "drawing_story" {
		t.Errorf("schema name = %q", format.OfJSONSchema.JSONSchema.Name)
	}
	if format.OfJSONSchema.JSONSchema.Schema == nil {
		t.Error("schema payload should not be nil")
	}
}
