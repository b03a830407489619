package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sonroyaalmerol/kumastream/internal/config"
	"github.com/sonroyaalmerol/kumastream/internal/media"
)

var installOnce sync.Once

// helpers to safely read pointer fields with defaults
func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

// YTDLP wraps the yt-dlp binary for metadata probes, searches and
// downloads.
type YTDLP struct {
	cookies  string
	poToken  string
	tmpDir   string
	maxH     int
	selector string
	log      *slog.Logger
}

func NewYTDLP(cfg *config.Config, log *slog.Logger) *YTDLP {
	if log == nil {
		log = slog.Default()
	}
	return &YTDLP{
		cookies:  cfg.YouTubeCookiesPath,
		poToken:  cfg.YouTubePOToken,
		tmpDir:   cfg.TempDir(),
		maxH:     cfg.Stream.Height,
		selector: cfg.DownloadFormat,
		log:      log,
	}
}

func (y *YTDLP) ensureInstalled(ctx context.Context) {
	installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			y.log.Warn("yt-dlp install check failed", "err", err)
		}
	})
}

func (y *YTDLP) command(url string) *ytdlp.Command {
	cmd := ytdlp.New().NoCheckCertificates()
	if y.cookies != "" {
		cmd = cmd.Cookies(y.cookies)
	}
	if media.IsPlatformVideo(url) {
		args := "youtube:player-client=default,mweb"
		if y.poToken != "" {
			args += ";po_token=" + y.poToken
		}
		cmd = cmd.ExtractorArgs(args)
	}
	return cmd
}

func (y *YTDLP) Probe(ctx context.Context, url string) (*media.Info, error) {
	y.ensureInstalled(ctx)

	res, err := y.command(url).NoPlaylist().DumpJSON().Run(ctx, url)
	if err != nil {
		if strings.Contains(err.Error(), "Sign in to confirm") {
			return nil, errors.Wrap(err, "yt-dlp probe (PO token may be required)")
		}
		return nil, errors.Wrap(err, "yt-dlp probe")
	}
	return decodeInfo(res.Stdout)
}

// decodeInfo reads the first JSON document of a --dump-json run.
func decodeInfo(out string) (*media.Info, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info media.Info
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return nil, errors.Wrap(err, "parse yt-dlp json")
		}
		return &info, nil
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read yt-dlp output")
	}
	return nil, errors.New("parse yt-dlp json: no info returned")
}

func (y *YTDLP) LiveStreamURL(ctx context.Context, pageURL string) (string, error) {
	y.ensureInstalled(ctx)

	res, err := y.command(pageURL).
		Format("best[protocol^=m3u8]/best").
		DumpJSON().
		Run(ctx, pageURL)
	if err != nil {
		return "", errors.Wrap(err, "yt-dlp live lookup")
	}
	info, err := decodeInfo(res.Stdout)
	if err != nil {
		return "", err
	}
	if info.URL != "" {
		return info.URL, nil
	}
	if fm, ok := media.PickLive(info.Formats); ok {
		return fm.URL, nil
	}
	return "", media.ErrNoVariants
}

func (y *YTDLP) Search(ctx context.Context, text string, limit int) ([]media.SearchResult, error) {
	y.ensureInstalled(ctx)
	if limit <= 0 {
		limit = 1
	}

	res, err := ytdlp.New().
		FlatPlaylist().
		DumpJSON().
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, text))
	if err != nil {
		return nil, errors.Wrap(err, "yt-dlp search")
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, errors.Wrap(err, "parse yt-dlp search json")
	}

	var out []media.SearchResult
	add := func(e *ytdlp.ExtractedInfo) {
		if e == nil || len(out) >= limit {
			return
		}
		page := s(e.WebpageURL)
		if page == "" {
			page = s(e.URL)
		}
		if page == "" && e.ID != "" {
			page = "https://www.youtube.com/watch?v=" + e.ID
		}
		if page == "" {
			return
		}
		out = append(out, media.SearchResult{
			Title:       s(e.Title),
			PageURL:     page,
			DurationSec: int(f(e.Duration)),
		})
	}
	for _, info := range infos {
		if info == nil {
			continue
		}
		if len(info.Entries) > 0 {
			for _, e := range info.Entries {
				add(e)
			}
			continue
		}
		add(info)
	}
	return out, nil
}

// FormatSelector returns the download selector capped at height.
func FormatSelector(height int) string {
	return fmt.Sprintf(
		"bestvideo[height<=%[1]d][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%[1]d]+bestaudio/best[height<=%[1]d]/best",
		height,
	)
}

// Download materializes pageURL into a temporary file and returns its path.
// Partial output is removed when the download fails.
func (y *YTDLP) Download(ctx context.Context, pageURL string) (string, error) {
	y.ensureInstalled(ctx)

	if err := os.MkdirAll(y.tmpDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create temp dir")
	}
	base := filepath.Join(y.tmpDir, "dl-"+uuid.NewString())
	sel := y.selector
	if sel == "" {
		sel = FormatSelector(y.maxH)
	}

	_, err := y.command(pageURL).
		Format(sel).
		NoPlaylist().
		Output(base + ".%(ext)s").
		Run(ctx, pageURL)
	if err != nil {
		removeMatching(base)
		return "", errors.Wrap(err, "yt-dlp download")
	}

	path, err := finishedFile(base)
	if err != nil {
		removeMatching(base)
		return "", err
	}
	if st, err := os.Stat(path); err == nil {
		y.log.Info("download finished", "url", pageURL, "path", path, "size", humanize.Bytes(uint64(st.Size())))
	}
	return path, nil
}

func finishedFile(base string) (string, error) {
	matches, _ := filepath.Glob(base + ".*")
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", errors.New("yt-dlp download produced no file")
}

func removeMatching(base string) {
	matches, _ := filepath.Glob(base + ".*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}
