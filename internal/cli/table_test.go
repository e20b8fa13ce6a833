package cli

import (
	"bytes"
	"strings"
	"testing"

	"plexadmin/internal/filter"
	"plexadmin/internal/shares"
)

func TestRenderTablePlainStyle(t *testing.T) {
	out := RenderTable([]string{"Name", "Value"}, [][]string{{"a", "1"}, {"b"}}, false)
	if strings.ContainsAny(out, "╭╮╰╯") {
		t.Fatalf("plain style should not use rounded borders:\n%s", out)
	}
	for _, want := range []string{"NAME", "VALUE", "| a", "| b"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in\n%s", want, out)
		}
	}
	if RenderTable(nil, nil, false) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestRenderTableRoundedStyle(t *testing.T) {
	out := RenderTable([]string{"Name"}, [][]string{{"a"}}, true)
	if !strings.Contains(out, "╭") {
		t.Fatalf("expected rounded borders:\n%s", out)
	}
}

func TestWriteRecordTable(t *testing.T) {
	var buf bytes.Buffer
	rec := shares.Record{
		Title:        "bob",
		Username:     "bobby",
		UserID:       5,
		ServerName:   "Den",
		Sections:     shares.SectionList{"Movies", "TV Shows"},
		AllowSync:    true,
		FilterMovies: filter.Filter{"label": {"kids"}},
	}
	if err := WriteRecordTable(&buf, "bob", rec); err != nil {
		t.Fatalf("write table: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Current share settings for bob:", "Movies, TV Shows", "{label: [kids]}", "bobby"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in\n%s", want, out)
		}
	}
	if IsTerminal(&buf) {
		t.Fatal("buffer is not a terminal")
	}
}
