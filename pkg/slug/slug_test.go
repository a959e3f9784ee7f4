package slug

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/tendant/agencyhub/pkg/domain"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestMake(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Acme", "acme"},
		{"mixed case and spaces", "Acme Design Studio", "acme-design-studio"},
		{"punctuation", "  Hello, World!! ", "hello-world"},
		{"accents", "Café Crème Brûlée", "cafe-creme-brulee"},
		{"unicode symbols", "Rock ★ Roll ♫ Agency", "rock-roll-agency"},
		{"non latin only", "東京", "item"},
		{"digits", "Agency 42", "agency-42"},
		{"leading and trailing junk", "--__Acme__--", "acme"},
		{"empty", "", "item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Make(tt.in); got != tt.want {
				t.Errorf("Make(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMake_Shape(t *testing.T) {
	inputs := []string{
		"Ünïcödé Ågency & Co. — Ltd.",
		strings.Repeat("Very Long Agency Name ", 10),
		"a" + strings.Repeat("-", 60) + "b",
		"MiXeD CaSe 123 !!!",
	}

	for _, in := range inputs {
		got := Make(in)
		if len(got) > MaxLength {
			t.Errorf("Make(%q) length = %d, want <= %d", in, len(got), MaxLength)
		}
		if !slugPattern.MatchString(got) {
			t.Errorf("Make(%q) = %q, not lowercase alphanumeric with hyphens", in, got)
		}
	}
}

func TestCandidate(t *testing.T) {
	long := strings.Repeat("abcde-", 10) // 60 chars

	tests := []struct {
		base    string
		attempt int
		want    string
	}{
		{"acme", 0, "acme"},
		{"acme", 1, "acme-1"},
		{"acme", 2, "acme-2"},
		{long, 0, strings.Repeat("abcde-", 8) + "ab"},
		{long, 12, strings.Repeat("abcde-", 7) + "abcde-12"},
	}

	for _, tt := range tests {
		got := Candidate(tt.base, tt.attempt)
		if got != tt.want {
			t.Errorf("Candidate(%q, %d) = %q, want %q", tt.base, tt.attempt, got, tt.want)
		}
		if len(got) > MaxLength {
			t.Errorf("Candidate(%q, %d) length = %d", tt.base, tt.attempt, len(got))
		}
	}
}

func TestUnique_AttemptOrder(t *testing.T) {
	taken := map[string]bool{"acme": true, "acme-1": true, "acme-2": true}
	var tried []string

	got, err := Unique(context.Background(), "acme", func(_ context.Context, s string) (bool, error) {
		tried = append(tried, s)
		return taken[s], nil
	})
	if err != nil {
		t.Fatalf("Unique failed: %v", err)
	}
	if got != "acme-3" {
		t.Errorf("Unique() = %q, want %q", got, "acme-3")
	}

	want := []string{"acme", "acme-1", "acme-2", "acme-3"}
	if strings.Join(tried, ",") != strings.Join(want, ",") {
		t.Errorf("tried %v, want %v", tried, want)
	}
}

func TestUnique_Exhausted(t *testing.T) {
	_, err := Unique(context.Background(), "acme", func(context.Context, string) (bool, error) {
		return true, nil
	})
	if !errors.Is(err, domain.ErrSlugExhausted) {
		t.Errorf("Unique() error = %v, want %v", err, domain.ErrSlugExhausted)
	}
}

func TestInsert(t *testing.T) {
	existing := map[string]bool{"studio": true, "studio-1": true}

	got, err := Insert(context.Background(), "studio", func(_ context.Context, s string) error {
		if existing[s] {
			return domain.ErrSlugTaken
		}
		existing[s] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if got != "studio-2" {
		t.Errorf("Insert() = %q, want %q", got, "studio-2")
	}
}

func TestInsert_OtherErrorStops(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0

	_, err := Insert(context.Background(), "studio", func(context.Context, string) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Insert() error = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("insert called %d times, want 1", calls)
	}
}
