package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	"github.com/sonroyaalmerol/kumastream/internal/player"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/sonroyaalmerol/kumastream/internal/repository"
	"github.com/sonroyaalmerol/kumastream/internal/utils"
)

const (
	maxDesc      = 4096
	colorPlaying = 0x006400
	colorIdle    = 0x992222
	colorInfo    = 0x2b6cb0
)

var (
	ErrQueueEmpty = errors.New("queue is empty")
	ErrPageRange  = errors.New("the queue isn't that big")
)

func itemLink(it queue.Item) string {
	title := utils.EscapeMd(utils.Truncate(it.Title, 80))
	if utils.IsHTTP(it.OriginalInput) {
		return fmt.Sprintf("[%s](%s)", title, it.OriginalInput)
	}
	return title
}

func itemLength(it queue.Item) string {
	if it.IsLive || it.Kind == queue.KindLiveChannel {
		return "live"
	}
	return it.Kind.String()
}

// BuildStatusEmbed renders the orchestrator state and the current item.
func BuildStatusEmbed(st player.Status) *discordgo.MessageEmbed {
	if st.Current == nil {
		desc := fmt.Sprintf("State: `%s`", st.State)
		if n := len(st.Queue.Items); n > 0 {
			desc += fmt.Sprintf("\n%d queued, use /play to start", n)
		}
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: desc,
			Color:       colorIdle,
			Fields:      statusFields(st),
		}
	}

	cur := *st.Current
	desc := fmt.Sprintf("**%s**\nRequested by: <@%s>\n\n", itemLink(cur), cur.RequestedBy)
	switch {
	case cur.IsLive:
		desc += fmt.Sprintf("🔴 live `[ %s ]`", utils.PrettyTime(int(st.Elapsed().Seconds())))
	case st.DurationSec > 0:
		pos := int(st.Elapsed().Seconds())
		bar := ProgressBar(10, float64(pos)/float64(st.DurationSec))
		desc += fmt.Sprintf("%s `[ %s/%s ]`", bar, utils.PrettyTime(pos), utils.PrettyTime(st.DurationSec))
	case !st.StartedAt.IsZero():
		desc += fmt.Sprintf("`[ %s ]`", utils.PrettyTime(int(st.Elapsed().Seconds())))
	default:
		desc += fmt.Sprintf("`%s…`", st.State)
	}

	color := colorPlaying
	title := "Now Playing"
	if st.State != player.StateStreaming {
		color = colorInfo
		title = strings.ToUpper(st.State.String()[:1]) + st.State.String()[1:]
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       color,
		Fields:      statusFields(st),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Source: %s", cur.Kind),
		},
	}
}

func statusFields(st player.Status) []*discordgo.MessageEmbedField {
	p := st.Params
	params := "-"
	if p.Width > 0 {
		params = fmt.Sprintf("%dx%d@%d %dk", p.Width, p.Height, p.FPS, p.BitrateKbps)
	}
	return []*discordgo.MessageEmbedField{
		{Name: "State", Value: st.State.String(), Inline: true},
		{Name: "In queue", Value: queueInfo(len(st.Queue.Items)), Inline: true},
		{Name: "Failed", Value: fmt.Sprint(st.Failed), Inline: true},
		{Name: "Stream", Value: params, Inline: true},
	}
}

// BuildQueueEmbed renders one page of the queue. isFailed marks inputs that
// failed before; it may be nil.
func BuildQueueEmbed(qs queue.Status, isFailed func(string) bool, page, pageSize int) (*discordgo.MessageEmbed, error) {
	total := len(qs.Items)
	if total == 0 {
		return nil, ErrQueueEmpty
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}
	maxPage := (total + pageSize - 1) / pageSize
	if page > maxPage {
		return nil, ErrPageRange
	}

	var desc strings.Builder
	if qs.CurrentIndex >= 0 && qs.CurrentIndex < total {
		cur := qs.Items[qs.CurrentIndex]
		fmt.Fprintf(&desc, "**%s**\nRequested by: <@%s>\n\n", itemLink(cur), cur.RequestedBy)
	}

	begin := (page - 1) * pageSize
	end := min(begin+pageSize, total)
	lines := make([]string, 0, end-begin)
	for idx := begin; idx < end; idx++ {
		it := qs.Items[idx]
		marker := ""
		if idx == qs.CurrentIndex {
			marker = "▶️ "
		}
		if isFailed != nil && isFailed(it.OriginalInput) {
			marker += "⚠️ "
		}
		lines = append(lines, fmt.Sprintf("`%d.` %s%s `[ %s ]`", idx+1, marker, itemLink(it), itemLength(it)))
	}

	desc.WriteString("**Queue:**\n")
	shown := 0
	for _, line := range lines {
		if desc.Len()+len(line)+1 > maxDesc {
			break
		}
		desc.WriteString(line)
		desc.WriteByte('\n')
		shown++
	}
	if shown < len(lines) {
		more := fmt.Sprintf("…and %d more", len(lines)-shown)
		if desc.Len()+len(more) <= maxDesc {
			desc.WriteString(more)
		}
	}

	title := "Queue"
	if qs.IsPlaying {
		title = "Now Playing"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: desc.String(),
		Color:       colorPlaying,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: queueInfo(total), Inline: true},
			{Name: "Page", Value: fmt.Sprintf("%d out of %d", page, maxPage), Inline: true},
		},
	}, nil
}

func BuildHistoryEmbed(rows []repository.Playback) *discordgo.MessageEmbed {
	if len(rows) == 0 {
		return &discordgo.MessageEmbed{Title: "History", Description: "nothing played yet", Color: colorInfo}
	}
	var b strings.Builder
	for n, r := range rows {
		icon := "✅"
		switch r.Outcome {
		case repository.OutcomeStopped:
			icon = "⏹️"
		case repository.OutcomeFailed:
			icon = "❌"
		}
		fmt.Fprintf(&b, "`%d.` %s **%s** `[ %s ]` %s\n", n+1, icon,
			utils.EscapeMd(utils.Truncate(r.Title, 60)),
			utils.PrettyTime(int(r.Duration().Seconds())),
			humanize.Time(r.StartedAt))
		if r.Outcome == repository.OutcomeFailed && r.Error != "" {
			fmt.Fprintf(&b, "  ↳ %s\n", utils.EscapeMd(utils.Truncate(r.Error, 120)))
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "History",
		Description: utils.Truncate(b.String(), maxDesc),
		Color:       colorInfo,
	}
}

func BuildLibraryEmbed(files []media.LibraryFile) *discordgo.MessageEmbed {
	if len(files) == 0 {
		return &discordgo.MessageEmbed{Title: "Library", Description: "no media files found", Color: colorInfo}
	}
	var b strings.Builder
	var total uint64
	for _, f := range files {
		line := fmt.Sprintf("• %s `%s`\n", utils.EscapeMd(f.Name), humanize.Bytes(uint64(f.Size)))
		if b.Len()+len(line) > maxDesc-64 {
			fmt.Fprintf(&b, "…and more")
			break
		}
		b.WriteString(line)
		total += uint64(f.Size)
	}
	return &discordgo.MessageEmbed{
		Title:       "Library",
		Description: b.String(),
		Color:       colorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d files, %s", len(files), humanize.Bytes(total))},
	}
}

func BuildSearchEmbed(query string, results []media.SearchResult) *discordgo.MessageEmbed {
	var b strings.Builder
	for n, r := range results {
		dur := "-"
		if r.DurationSec > 0 {
			dur = utils.PrettyTime(r.DurationSec)
		}
		fmt.Fprintf(&b, "`%d.` [%s](%s) `[ %s ]`\n", n+1, utils.EscapeMd(utils.Truncate(r.Title, 80)), r.PageURL, dur)
	}
	if b.Len() == 0 {
		b.WriteString("no results")
	}
	return &discordgo.MessageEmbed{
		Title:       "Results for " + utils.Truncate(query, 200),
		Description: b.String(),
		Color:       colorInfo,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func queueInfo(n int) string {
	switch n {
	case 0:
		return "-"
	case 1:
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}
