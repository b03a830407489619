package stream

import (
	"context"
	"log/slog"
	"math"

	"github.com/asticode/go-astiav"
	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/utils"
)

// SourceParams are the native parameters of a playable source.
type SourceParams struct {
	Width            int
	Height           int
	FPS              float64
	AudioBitrateKbps int
}

// Prober reads stream parameters with libavformat.
type Prober struct {
	log *slog.Logger
}

func NewProber(log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	return &Prober{log: log}
}

// Probe opens ref and reports its best video and audio streams. ctx is
// checked before the blocking open only.
func (pr *Prober) Probe(ctx context.Context, ref string, headers map[string]string) (SourceParams, error) {
	if err := ctx.Err(); err != nil {
		return SourceParams{}, err
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return SourceParams{}, errors.New("alloc format context")
	}
	defer fc.Free()

	dict := astiav.NewDictionary()
	defer dict.Free()
	if utils.IsHTTP(ref) {
		_ = dict.Set("reconnect", "1", 0)
		_ = dict.Set("rw_timeout", "10000000", 0)
		if headers != nil {
			_ = dict.Set("headers", utils.BuildFFmpegHeaders(headers), 0)
		}
	}

	if err := fc.OpenInput(ref, nil, dict); err != nil {
		return SourceParams{}, errors.Wrap(err, "open input")
	}
	defer fc.CloseInput()

	if err := fc.FindStreamInfo(nil); err != nil {
		return SourceParams{}, errors.Wrap(err, "find stream info")
	}

	var out SourceParams
	if st, _, err := fc.FindBestStream(astiav.MediaTypeVideo, -1, -1); err == nil && st != nil {
		cp := st.CodecParameters()
		out.Width = cp.Width()
		out.Height = cp.Height()
		out.FPS = st.AvgFrameRate().Float64()
		if math.IsNaN(out.FPS) || math.IsInf(out.FPS, 0) {
			out.FPS = 0
		}
	}
	if st, _, err := fc.FindBestStream(astiav.MediaTypeAudio, -1, -1); err == nil && st != nil {
		out.AudioBitrateKbps = int(st.CodecParameters().BitRate() / 1000)
	}
	if out.Width == 0 && out.AudioBitrateKbps == 0 {
		return out, errors.Newf("no usable streams in %s", ref)
	}
	pr.log.Debug("probed source", "ref", ref, "width", out.Width, "height", out.Height, "fps", out.FPS)
	return out, nil
}

// Apply overrides the rendition with the source's native values where the
// probe produced them.
func (sp SourceParams) Apply(p Params) Params {
	if sp.Width > 0 && sp.Height > 0 {
		p.Width = sp.Width
		p.Height = sp.Height
	}
	if sp.FPS > 0 {
		p.FPS = int(math.Round(sp.FPS))
	}
	return p
}
