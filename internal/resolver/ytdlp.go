package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// printTemplate is what yt-dlp prints per entry, tab separated
const printTemplate = "%(url)s\t%(title)s\t%(webpage_url)s\t%(duration)s"

// YTDLP extracts streams by shelling out to yt-dlp
type YTDLP struct {
	format     string
	proxy      string
	executable string
}

// NewYTDLP creates a yt-dlp extractor. format defaults to bestaudio/best and
// an empty executable lets go-ytdlp find yt-dlp on PATH.
func NewYTDLP(format, proxy, executable string) *YTDLP {
	if format == "" {
		format = "bestaudio/best"
	}
	return &YTDLP{format: format, proxy: proxy, executable: executable}
}

func (y *YTDLP) Name() string { return "yt-dlp" }

// Supports accepts every URL and yt-dlp search expressions
func (y *YTDLP) Supports(target string) bool { return true }

// Extract asks yt-dlp for the first entry of target without downloading it
func (y *YTDLP) Extract(ctx context.Context, target string) (Stream, error) {
	res, err := y.command().Run(ctx, target)
	if err != nil {
		return Stream{}, fmt.Errorf("yt-dlp failed: %w", err)
	}

	return parsePrintOutput(res.Stdout)
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		NoPlaylist().
		SkipDownload().
		NoCheckFormats().
		PlaylistItems("1").
		Format(y.format).
		Print(printTemplate)

	if y.proxy != "" {
		cmd.Proxy(y.proxy)
	}
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

// parsePrintOutput reads the first usable line of printTemplate output
func parsePrintOutput(out string) (Stream, error) {
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(strings.TrimSpace(line), "\t")
		if len(parts) < 2 || !IsURL(parts[0]) {
			continue
		}

		stream := Stream{
			Locator: parts[0],
			Title:   fieldOrEmpty(parts[1]),
		}
		if len(parts) > 2 && IsURL(parts[2]) {
			stream.PageURL = parts[2]
		}
		if len(parts) > 3 {
			if secs, err := strconv.ParseFloat(parts[3], 64); err == nil {
				stream.Duration = time.Duration(secs * float64(time.Second))
			}
		}
		return stream, nil
	}
	return Stream{}, errors.New("yt-dlp returned no entries")
}

// yt-dlp prints NA for missing fields
func fieldOrEmpty(v string) string {
	if v == "NA" {
		return ""
	}
	return v
}
