package validation

import "testing"

func TestLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Hello World", want: "Hello World"},
		{name: "surrounding space", input: "  Acme  ", want: "Acme"},
		{name: "control characters", input: "Ac\x00me\x1b", want: "Acme"},
		{name: "line breaks removed", input: "Ac\nme\t", want: "Acme"},
		{name: "unicode kept", input: "Zoë Café", want: "Zoë Café"},
		{name: "markup kept verbatim", input: "<b>Acme</b>", want: "<b>Acme</b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Line(tt.input); got != tt.want {
				t.Errorf("Line(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "keeps line breaks", input: "line one\nline two\r\n\tindented", want: "line one\nline two\r\n\tindented"},
		{name: "removes other controls", input: "bell\x07 here", want: "bell here"},
		{name: "trims", input: "\n notes \n", want: "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	if got := Email("  Olivia@Acme.TEST "); got != "olivia@acme.test" {
		t.Errorf("Email() = %q, want olivia@acme.test", got)
	}
}

func TestPtrHelpers(t *testing.T) {
	if LinePtr(nil) != nil || TextPtr(nil) != nil || EmailPtr(nil) != nil {
		t.Fatal("nil input must stay nil")
	}
	in := " x "
	if got := LinePtr(&in); *got != "x" {
		t.Errorf("LinePtr() = %q, want x", *got)
	}
	if in != " x " {
		t.Errorf("LinePtr() modified its input")
	}
}
