package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagegrab/pagegrab/internal/auth"
	"github.com/pagegrab/pagegrab/internal/browser"
	"github.com/pagegrab/pagegrab/internal/extract"
	"github.com/pagegrab/pagegrab/internal/input"
	"github.com/pagegrab/pagegrab/internal/logger"
	"github.com/pagegrab/pagegrab/internal/output"
)

var grabCmd = &cobra.Command{
	Use:   "grab",
	Short: "Authenticate and archive one or more pages",
	Long: `Grab navigates to each URL, restores any saved session cookies for
its domain, and waits for a manual login if the page demands one. Once
access is confirmed it writes the page's text, headlines, images,
metadata, and links into a {title}_data folder, and a scroll series of
screenshots into {title}_screenshots.

URLs come from repeated -u flags, or interactively from stdin when no
flag is given (empty line ends the list).`,
	RunE: runGrab,
}

func init() {
	rootCmd.AddCommand(grabCmd)

	flags := grabCmd.Flags()

	flags.StringSliceP("url", "u", nil, "URL(s) to archive (can be repeated)")
	flags.String("cookie-dir", "cookies", "directory for per-domain cookie files")
	flags.Duration("login-timeout", 60*time.Second, "how long to wait for a manual login")
	flags.Int("screenshots", 5, "number of scroll-position screenshots per page")
	flags.Bool("no-screenshots", false, "skip screenshot capture")
	flags.Duration("scroll-pause", time.Second, "settle time after each scroll")
	flags.Bool("stealth", true, "apply anti-automation browser flags")
	flags.Bool("headless", false, "run the browser headless (manual login needs a window)")
	flags.Bool("check-links", false, "validate extracted links and write link_check.json")
	flags.Int("check-links-limit", 25, "max links to validate per page (0=all)")
	flags.String("max-text-size", "0", "truncate page_text.txt at this size (e.g. 256KB, 0=unlimited)")
	flags.StringP("output", "o", "", "append per-page summaries to this file (JSONL)")
	flags.String("summary-format", "json", "summary file format: json, yaml")
	flags.Duration("pause", 3*time.Second, "pause between URLs")

	_ = viper.BindPFlag("cookie_dir", flags.Lookup("cookie-dir"))
	_ = viper.BindPFlag("login_timeout", flags.Lookup("login-timeout"))
}

type grabOptions struct {
	cookieDir     string
	loginTimeout  time.Duration
	screenshots   int
	noScreenshots bool
	scrollPause   time.Duration
	stealth       bool
	headless      bool
	checkLinks    bool
	checkLimit    int
	maxTextSize   int
	summaryFormat output.Format
	pause         time.Duration
}

func runGrab(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts, err := parseGrabOptions(cmd)
	if err != nil {
		return err
	}

	urls, _ := cmd.Flags().GetStringSlice("url")
	if len(urls) == 0 {
		urls, err = input.ReadURLs(os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
	}
	if len(urls) == 0 {
		return errors.New("no URLs to process")
	}
	for i, u := range urls {
		urls[i] = input.NormalizeURL(u)
	}

	fsys := afero.NewOsFs()
	store := auth.NewCookieStore(fsys, opts.cookieDir)

	authCfg := auth.DefaultConfig()
	authCfg.LoginTimeout = opts.loginTimeout
	authenticator, err := auth.New(authCfg, store)
	if err != nil {
		return fmt.Errorf("configure authenticator: %w", err)
	}

	var results output.Writer
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //#nosec G304 -- user-specified output file
		if err != nil {
			return fmt.Errorf("open results file: %w", err)
		}
		defer func() { _ = f.Close() }()
		results = output.NewJSONLWriter(f)
		defer func() { _ = results.Close() }()
	}

	// Each URL is handled to completion before the next begins; a failure
	// is logged and the loop moves on.
	for i, target := range urls {
		if ctx.Err() != nil {
			logger.Warn("interrupted, stopping", "processed", i, "total", len(urls))
			break
		}

		logger.Info("processing URL", "index", i+1, "total", len(urls), "url", target)

		res, err := grabOne(ctx, authenticator, fsys, target, opts)
		if err != nil {
			logger.Error("URL failed", "url", target, "error", err)
		} else if results != nil {
			if err := results.Write(res.Summary); err != nil {
				logger.Error("failed to record summary", "error", err)
			}
		}

		if i < len(urls)-1 {
			logger.Info("pausing before next URL", "pause", opts.pause)
			time.Sleep(opts.pause)
		}
	}

	return nil
}

// grabOne runs one URL through its full lifecycle: fresh browser, cookie
// restore, authentication, archive, screenshots. Browser and tab are released
// on every exit path.
func grabOne(ctx context.Context, authenticator *auth.Authenticator, fsys afero.Fs, target string, opts grabOptions) (extract.Result, error) {
	bcfg := browser.DefaultConfig()
	bcfg.Headless = opts.headless
	bcfg.Stealth = opts.stealth

	b, err := browser.New(bcfg)
	if err != nil {
		return extract.Result{}, fmt.Errorf("launch browser: %w", err)
	}
	defer func() { _ = b.Close() }()

	page, release, err := b.NewPage(ctx)
	if err != nil {
		return extract.Result{}, fmt.Errorf("open page: %w", err)
	}
	defer release()

	if !authenticator.Authenticate(ctx, page, page, target) {
		return extract.Result{}, errors.New("authentication failed")
	}
	logger.Info("authentication successful, archiving", "url", target)

	// Let client-side rendering finish before snapshotting the DOM.
	time.Sleep(4 * time.Second)

	title, err := page.Title(ctx)
	if err != nil {
		logger.Warn("could not read page title", "error", err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return extract.Result{}, fmt.Errorf("snapshot page: %w", err)
	}
	bodyText, err := page.Text(ctx, "body")
	if err != nil {
		logger.Warn("could not read body text", "error", err)
	}
	pageURL, err := page.URL(ctx)
	if err != nil || pageURL == "" {
		pageURL = target
	}

	archiver := extract.NewArchiver(fsys, opts.maxTextSize)
	res, err := archiver.Archive(extract.PageCapture{
		URL:      pageURL,
		Title:    title,
		HTML:     html,
		BodyText: bodyText,
	})
	if err != nil {
		return extract.Result{}, fmt.Errorf("archive page: %w", err)
	}

	if !opts.noScreenshots {
		folder, err := extract.CaptureScreenshots(ctx, fsys, page, title, extract.ScreenshotConfig{
			Count:       opts.screenshots,
			ScrollPause: opts.scrollPause,
		})
		if err != nil {
			logger.Warn("screenshot capture incomplete", "error", err)
		}
		res.Summary.ScreenshotFolder = folder
	}

	if opts.checkLinks {
		checks := extract.CheckLinks(linkTargets(res.Links), extract.LinkCheckConfig{
			Limit:     opts.checkLimit,
			UserAgent: bcfg.UserAgent,
		})
		if err := archiver.WriteJSON(res.Folder, "link_check.json", checks); err != nil {
			logger.Warn("could not write link check results", "error", err)
		}
	}

	if err := archiver.WriteSummary(res, opts.summaryFormat); err != nil {
		return res, fmt.Errorf("write summary: %w", err)
	}
	logger.Info("page archived", "folder", res.Folder)

	return res, nil
}

// linkTargets flattens the categorized links into fetchable URLs.
func linkTargets(links extract.Links) []string {
	var targets []string
	seen := map[string]bool{}
	for _, group := range [][]extract.Link{links.Internal, links.External} {
		for _, l := range group {
			if strings.HasPrefix(l.URL, "mailto:") || strings.HasPrefix(l.URL, "tel:") {
				continue
			}
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			targets = append(targets, l.URL)
		}
	}
	return targets
}

func parseGrabOptions(cmd *cobra.Command) (grabOptions, error) {
	flags := cmd.Flags()

	opts := grabOptions{}
	opts.cookieDir = viper.GetString("cookie_dir")
	opts.loginTimeout = viper.GetDuration("login_timeout")
	opts.screenshots, _ = flags.GetInt("screenshots")
	opts.noScreenshots, _ = flags.GetBool("no-screenshots")
	opts.scrollPause, _ = flags.GetDuration("scroll-pause")
	opts.stealth, _ = flags.GetBool("stealth")
	opts.headless, _ = flags.GetBool("headless")
	opts.checkLinks, _ = flags.GetBool("check-links")
	opts.checkLimit, _ = flags.GetInt("check-links-limit")
	opts.pause, _ = flags.GetDuration("pause")

	maxTextStr, _ := flags.GetString("max-text-size")
	if s := strings.TrimSpace(maxTextStr); s != "" && s != "0" {
		bytes, err := humanize.ParseBytes(s)
		if err != nil {
			return opts, fmt.Errorf("invalid max-text-size %q: %w", maxTextStr, err)
		}
		opts.maxTextSize = int(bytes)
	}

	formatStr, _ := flags.GetString("summary-format")
	format, err := output.ParseFormat(formatStr)
	if err != nil || format == output.FormatJSONL {
		return opts, fmt.Errorf("summary-format must be json or yaml, got %q", formatStr)
	}
	opts.summaryFormat = format

	return opts, nil
}
