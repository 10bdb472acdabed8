// Package input collects target URLs interactively from a terminal.
package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// NormalizeURL prefixes schemeless URLs with https://.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// ReadURLs prompts for newline-delimited URLs on r, echoing prompts to w. An
// empty line finishes the list, but at least one URL is required; an empty
// line before any URL re-prompts. URLs lacking a scheme get an https://
// prefix. EOF returns whatever was collected so far.
func ReadURLs(r io.Reader, w io.Writer) ([]string, error) {
	fmt.Fprintln(w, "Enter URLs to process, one per line.")
	fmt.Fprintln(w, "Press Enter on an empty line when done.")

	scanner := bufio.NewScanner(r)
	var urls []string

	for {
		fmt.Fprintf(w, "URL %d: ", len(urls)+1)
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if len(urls) == 0 {
				fmt.Fprintln(w, "Please enter at least one URL.")
				continue
			}
			break
		}

		normalized := NormalizeURL(line)
		if normalized != line {
			fmt.Fprintf(w, "  added https:// prefix: %s\n", normalized)
		}
		urls = append(urls, normalized)
	}

	if err := scanner.Err(); err != nil {
		return urls, fmt.Errorf("read URLs: %w", err)
	}
	return urls, nil
}
