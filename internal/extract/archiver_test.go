package extract

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/pagegrab/pagegrab/internal/output"
)

func TestArchiver_Archive(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewArchiver(fs, 0)

	res, err := a.Archive(PageCapture{
		URL:      "https://example.com/sample",
		Title:    "Sample Page",
		HTML:     sampleHTML,
		BodyText: "Body text of the page.",
	})
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	if res.Folder != "Sample_Page_data" {
		t.Errorf("folder = %q", res.Folder)
	}

	for _, name := range []string{"page_text.txt", "headlines.json", "images.json", "metadata.json", "links.json"} {
		if exists, _ := afero.Exists(fs, res.Folder+"/"+name); !exists {
			t.Errorf("missing artifact %s", name)
		}
	}

	text, err := afero.ReadFile(fs, res.Folder+"/page_text.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(text), "Title: Sample Page\nURL: https://example.com/sample\n\n") {
		t.Errorf("page text header wrong:\n%s", text)
	}

	var headlines []Headline
	data, _ := afero.ReadFile(fs, res.Folder+"/headlines.json")
	if err := json.Unmarshal(data, &headlines); err != nil {
		t.Fatalf("headlines.json not valid JSON: %v", err)
	}
	if len(headlines) != res.Summary.HeadlinesCount {
		t.Errorf("summary counts %d headlines, file has %d", res.Summary.HeadlinesCount, len(headlines))
	}

	if res.Summary.ImagesCount != 2 {
		t.Errorf("ImagesCount = %d, want 2", res.Summary.ImagesCount)
	}
	if res.Summary.LinksCount != res.Links.Total() {
		t.Errorf("LinksCount = %d, links total %d", res.Summary.LinksCount, res.Links.Total())
	}
	if res.Summary.DataFolder != res.Folder {
		t.Errorf("DataFolder = %q, want %q", res.Summary.DataFolder, res.Folder)
	}
}

func TestArchiver_Archive_EmptyBodyText(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewArchiver(fs, 0)

	res, err := a.Archive(PageCapture{
		URL:   "https://example.com",
		Title: "empty",
		HTML:  "<html><body></body></html>",
	})
	if err != nil {
		t.Fatal(err)
	}

	text, _ := afero.ReadFile(fs, res.Folder+"/page_text.txt")
	if !strings.Contains(string(text), "No requested selector found") {
		t.Errorf("empty body text not flagged:\n%s", text)
	}
}

func TestArchiver_Archive_TruncatesText(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewArchiver(fs, 10)

	res, err := a.Archive(PageCapture{
		URL:      "https://example.com",
		Title:    "big",
		HTML:     "<html><body></body></html>",
		BodyText: strings.Repeat("a", 100),
	})
	if err != nil {
		t.Fatal(err)
	}

	text, _ := afero.ReadFile(fs, res.Folder+"/page_text.txt")
	body := string(text)[strings.Index(string(text), "\n\n")+2:]
	if len(body) != 10 {
		t.Errorf("body length = %d, want truncation to 10", len(body))
	}
}

func TestArchiver_Archive_TruncationKeepsValidUTF8(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewArchiver(fs, 10)

	// 3-byte runes, so a 10 byte cut lands mid-rune
	res, err := a.Archive(PageCapture{
		URL:      "https://example.com",
		Title:    "multibyte",
		HTML:     "<html><body></body></html>",
		BodyText: strings.Repeat("日", 10),
	})
	if err != nil {
		t.Fatal(err)
	}

	text, _ := afero.ReadFile(fs, res.Folder+"/page_text.txt")
	body := string(text)[strings.Index(string(text), "\n\n")+2:]
	if !utf8.ValidString(body) {
		t.Errorf("truncated body is not valid UTF-8: %q", body)
	}
	if len(body) == 0 || len(body) > 10 {
		t.Errorf("body length = %d, want at most 10 and non-empty", len(body))
	}
}

func TestArchiver_WriteSummary_JSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewArchiver(fs, 0)
	res := Result{
		Folder: "x_data",
		Summary: Summary{
			URL:              "https://example.com",
			Title:            "x",
			DataFolder:       "x_data",
			ScreenshotFolder: "x_screenshots",
		},
	}
	if err := fs.MkdirAll(res.Folder, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := a.WriteSummary(res, output.FormatJSON); err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}

	data, err := afero.ReadFile(fs, "x_data/summary.json")
	if err != nil {
		t.Fatal(err)
	}
	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("summary.json not valid JSON: %v", err)
	}
	if got != res.Summary {
		t.Errorf("round trip = %+v, want %+v", got, res.Summary)
	}
}

func TestArchiver_WriteSummary_YAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewArchiver(fs, 0)
	res := Result{
		Folder:  "y_data",
		Summary: Summary{URL: "https://example.com", Title: "y", DataFolder: "y_data"},
	}
	if err := fs.MkdirAll(res.Folder, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := a.WriteSummary(res, output.FormatYAML); err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}

	data, err := afero.ReadFile(fs, "y_data/summary.yaml")
	if err != nil {
		t.Fatal(err)
	}
	var got Summary
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("summary.yaml not valid YAML: %v", err)
	}
	if got.URL != res.Summary.URL || got.DataFolder != res.Summary.DataFolder {
		t.Errorf("round trip = %+v", got)
	}
}
