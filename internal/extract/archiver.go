package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"

	"github.com/pagegrab/pagegrab/internal/logger"
	"github.com/pagegrab/pagegrab/internal/output"
)

// PageCapture is the raw material the archiver works from: one snapshot of
// an authenticated, rendered page.
type PageCapture struct {
	URL      string
	Title    string
	HTML     string
	BodyText string
}

// Summary is the per-page roll-up written alongside the artifacts.
type Summary struct {
	URL              string `json:"url" yaml:"url"`
	Title            string `json:"title" yaml:"title"`
	HeadlinesCount   int    `json:"headlines_count" yaml:"headlines_count"`
	ImagesCount      int    `json:"images_count" yaml:"images_count"`
	LinksCount       int    `json:"links_count" yaml:"links_count"`
	DataFolder       string `json:"data_folder" yaml:"data_folder"`
	ScreenshotFolder string `json:"screenshot_folder,omitempty" yaml:"screenshot_folder,omitempty"`
}

// Result is what one archived page produced.
type Result struct {
	Folder  string
	Summary Summary
	Links   Links
}

// Archiver writes one page's artifacts into a {title}_data folder.
type Archiver struct {
	fs          afero.Fs
	maxTextSize int
}

// NewArchiver creates an archiver on the given filesystem. maxTextSize
// truncates page_text.txt when positive.
func NewArchiver(fs afero.Fs, maxTextSize int) *Archiver {
	return &Archiver{fs: fs, maxTextSize: maxTextSize}
}

// Archive harvests every artifact from the capture and writes the data
// folder. The summary file is written separately once the screenshot folder
// is known.
func (a *Archiver) Archive(cap PageCapture) (Result, error) {
	folder := SafeFilename(cap.Title) + "_data"
	if err := a.fs.MkdirAll(folder, 0o755); err != nil {
		return Result{}, fmt.Errorf("create data folder %s: %w", folder, err)
	}
	logger.Info("created data folder", "folder", folder)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cap.HTML))
	if err != nil {
		return Result{}, fmt.Errorf("parse page HTML: %w", err)
	}

	if err := a.writePageText(folder, cap); err != nil {
		return Result{}, err
	}

	headlines := Headlines(doc)
	if err := a.WriteJSON(folder, "headlines.json", headlines); err != nil {
		return Result{}, err
	}
	logger.Info("headlines extracted", "count", len(headlines))

	images := Images(doc, cap.URL)
	if err := a.WriteJSON(folder, "images.json", images); err != nil {
		return Result{}, err
	}
	logger.Info("images extracted", "count", len(images))

	meta := Meta(doc, cap.Title, cap.URL)
	if err := a.WriteJSON(folder, "metadata.json", meta); err != nil {
		return Result{}, err
	}

	links := AllLinks(doc, cap.URL)
	if err := a.WriteJSON(folder, "links.json", links); err != nil {
		return Result{}, err
	}
	logger.Info("links extracted",
		"internal", len(links.Internal),
		"external", len(links.External),
		"social", len(links.Social))

	return Result{
		Folder: folder,
		Links:  links,
		Summary: Summary{
			URL:            cap.URL,
			Title:          cap.Title,
			HeadlinesCount: len(headlines),
			ImagesCount:    len(images),
			LinksCount:     links.Total(),
			DataFolder:     folder,
		},
	}, nil
}

// WriteSummary writes the summary artifact in the requested format
// (summary.json or summary.yaml).
func (a *Archiver) WriteSummary(res Result, format output.Format) error {
	name := "summary." + string(format)
	f, err := a.fs.Create(filepath.Join(res.Folder, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w, err := output.NewWriter(f, format)
	if err != nil {
		return err
	}
	if err := w.Write(res.Summary); err != nil {
		return err
	}
	return w.Close()
}

// WriteJSON writes one artifact as pretty-printed JSON into the folder.
func (a *Archiver) WriteJSON(folder, name string, v any) error {
	f, err := a.fs.Create(filepath.Join(folder, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := output.NewJSONWriter(f)
	if err := w.Write(v); err != nil {
		return err
	}
	return w.Close()
}

func (a *Archiver) writePageText(folder string, cap PageCapture) error {
	text := cap.BodyText
	if text == "" {
		text = "No requested selector found"
	}
	if a.maxTextSize > 0 && len(text) > a.maxTextSize {
		cut := a.maxTextSize
		// back up to a rune boundary so the cut never leaves a partial
		// UTF-8 sequence
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	content := fmt.Sprintf("Title: %s\nURL: %s\n\n%s", cap.Title, cap.URL, text)
	path := filepath.Join(folder, "page_text.txt")
	if err := afero.WriteFile(a.fs, path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write page text: %w", err)
	}
	logger.Info("page text saved", "path", path, "bytes", len(content))
	return nil
}
