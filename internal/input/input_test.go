package input

import (
	"bytes"
	"strings"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"example.com", "https://example.com"},
		{"  example.com/page  ", "https://example.com/page"},
		{"https://example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReadURLs(t *testing.T) {
	in := strings.NewReader("example.com\nhttps://other.org/x\n\n")
	var out bytes.Buffer

	urls, err := ReadURLs(in, &out)
	if err != nil {
		t.Fatalf("ReadURLs() error = %v", err)
	}

	want := []string{"https://example.com", "https://other.org/x"}
	if len(urls) != len(want) {
		t.Fatalf("ReadURLs() = %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}

	if !strings.Contains(out.String(), "URL 1: ") || !strings.Contains(out.String(), "URL 2: ") {
		t.Errorf("prompts missing:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "added https:// prefix") {
		t.Error("prefix notice not echoed")
	}
}

func TestReadURLs_EmptyLineBeforeAnyURLReprompts(t *testing.T) {
	in := strings.NewReader("\n\nexample.com\n\n")
	var out bytes.Buffer

	urls, err := ReadURLs(in, &out)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 1 || urls[0] != "https://example.com" {
		t.Errorf("ReadURLs() = %v", urls)
	}
	if !strings.Contains(out.String(), "at least one URL") {
		t.Error("re-prompt message missing")
	}
}

func TestReadURLs_EOFReturnsCollected(t *testing.T) {
	in := strings.NewReader("example.com")
	var out bytes.Buffer

	urls, err := ReadURLs(in, &out)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 1 {
		t.Errorf("ReadURLs() = %v, want the one URL read before EOF", urls)
	}
}

func TestReadURLs_EOFWithNothing(t *testing.T) {
	urls, err := ReadURLs(strings.NewReader(""), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 0 {
		t.Errorf("ReadURLs() = %v, want none", urls)
	}
}
