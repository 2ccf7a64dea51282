package artsvc_test

import (
	"testing"

	"github.com/mkrupp/inkspira/internal/svc/artsvc"
)

func TestTextSanitizer_Sanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Sunset over the bay", want: "Sunset over the bay"},
		{name: "tags are dropped", input: "<b>Bold</b> move", want: "Bold move"},
		{name: "script is removed", input: `Nice<script>alert("x")</script>`, want: "Nice"},
		{name: "ampersand survives", input: "Ink & Paper", want: "Ink & Paper"},
		{name: "whitespace is trimmed", input: "  spaced  ", want: "spaced"},
		{name: "encoded tags are dropped", input: "&lt;b&gt;x&lt;/b&gt;", want: "x"},
		{name: "encoded script is removed", input: "&lt;script&gt;alert(1)&lt;/script&gt;ok", want: "ok"},
		{name: "double encoded tags are dropped", input: "&amp;lt;img src=x onerror=alert(1)&amp;gt;pic", want: "pic"},
		{name: "less-than survives", input: "a < b", want: "a < b"},
	}

	sanitizer := artsvc.NewTextSanitizer()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
