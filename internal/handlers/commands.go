package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/autocomplete"
	"github.com/sonroyaalmerol/kumastream/internal/config"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	plib "github.com/sonroyaalmerol/kumastream/internal/player"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
	"github.com/sonroyaalmerol/kumastream/internal/repository"
	"github.com/sonroyaalmerol/kumastream/internal/stream"
	"github.com/sonroyaalmerol/kumastream/internal/ui"
	"github.com/sonroyaalmerol/kumastream/internal/utils"
)

const (
	searchLimit  = 5
	historyLimit = 10
	queuePage    = 10
)

type CommandHandler struct {
	cfg      *config.Config
	player   *plib.Player
	repo     *repository.Repo
	favs     *repository.FavoritesService
	lib      *media.Library
	search   media.Searcher
	suggest  *autocomplete.Suggester
	notifier *ChannelNotifier
}

type CommandDeps struct {
	Player   *plib.Player
	Repo     *repository.Repo
	Library  *media.Library
	Searcher media.Searcher
	Notifier *ChannelNotifier
}

func NewCommandHandler(cfg *config.Config, d CommandDeps) *CommandHandler {
	return &CommandHandler{
		cfg:      cfg,
		player:   d.Player,
		repo:     d.Repo,
		favs:     repository.NewFavoritesService(d.Repo),
		lib:      d.Library,
		search:   d.Searcher,
		suggest:  autocomplete.NewSuggester(d.Library),
		notifier: d.Notifier,
	}
}

func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Queue a video (URL, library file, or search) and start playback",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query, URL or library name", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
			},
		},
		{Name: "skip", Description: "skip the current item"},
		{Name: "stop", Description: "stop playback and clear the queue"},
		{
			Name:        "queue",
			Description: "show the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of queue to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{Name: "status", Description: "show what is playing and the stream settings"},
		{
			Name:        "move",
			Description: "move an item within the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "from", Description: "position of the item to move", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				{Name: "to", Description: "position to move the item to", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{
			Name:        "remove",
			Description: "remove an item from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position of the item to remove", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{Name: "list", Description: "list files in the local library"},
		{
			Name:        "ytsearch",
			Description: "search YouTube without queueing",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "search text", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{Name: "history", Description: "show recently played items"},
		{
			Name:        "favorites",
			Description: "Manage favorites",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "use",
					Description: "queue a favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "favorite name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "list favorites",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "save an input, or what is playing now, under a name",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "query", Description: "URL, path or search text; defaults to the current item", Type: discordgo.ApplicationCommandOptionString},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "remove favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "name", Description: "name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
			},
		},
	}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := commands()
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
		slog.Error("failed to register application commands", "guildID", guildID, "err", err)
		return errors.Wrap(err, "register commands")
	}
	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

// allowed reports whether commands may be issued from channelID.
func (h *CommandHandler) allowed(channelID string) bool {
	return h.cfg.CommandChannelID == "" || h.cfg.CommandChannelID == channelID
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		if !h.allowed(i.ChannelID) {
			h.reply(s, i, fmt.Sprintf("commands only work in <#%s>", h.cfg.CommandChannelID), true)
			return
		}
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		slog.Debug("interaction: autocomplete", "guildID", i.GuildID, "userID", userIDOf(i))
		h.handleAutocomplete(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Focused || opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if strings.TrimSpace(query) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
		defer cancel()
		var err error
		choices, err = h.suggest.Choices(ctx, query, 10)
		if err != nil {
			slog.Warn("autocomplete suggestions error", "guildID", i.GuildID, "err", err)
		}
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "status":
		h.cmdStatus(s, i)
	case "move":
		h.cmdMove(s, i)
	case "remove":
		h.cmdRemove(s, i)
	case "list":
		h.cmdList(s, i)
	case "ytsearch":
		h.cmdSearch(s, i)
	case "history":
		h.cmdHistory(s, i)
	case "favorites":
		h.cmdFavorites(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	h.respond(s, i, &discordgo.InteractionResponseData{Content: content}, ephemeral)
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	h.respond(s, i, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}, ephemeral)
}

func (h *CommandHandler) respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData, ephemeral bool) {
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) {
	edit := &discordgo.WebhookEdit{Content: &content}
	if len(embeds) > 0 {
		edit.Embeds = &embeds
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		g, _ = s.Guild(guildID)
	}
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

// destination picks the configured voice channel, falling back to the
// caller's current one.
func (h *CommandHandler) destination(s *discordgo.Session, i *discordgo.InteractionCreate) (stream.Destination, bool) {
	guildID := i.GuildID
	if h.cfg.GuildID != "" {
		guildID = h.cfg.GuildID
	}
	if h.cfg.VoiceChannelID != "" {
		return stream.Destination{GuildID: guildID, ChannelID: h.cfg.VoiceChannelID}, true
	}
	chID, ok := userInVoice(s, i.GuildID, userIDOf(i))
	if !ok {
		return stream.Destination{}, false
	}
	return stream.Destination{GuildID: i.GuildID, ChannelID: chID}, true
}

// enqueue adds query to the queue, preferring a library file of the same
// name. It reports the queued item.
func (h *CommandHandler) enqueue(query, requestedBy string) queue.Item {
	if f, ok := h.lib.Find(query); ok {
		return h.player.EnqueueResolved(f.Path, f.Name, queue.KindLocal, requestedBy)
	}
	return h.player.Enqueue(query, requestedBy)
}

func (h *CommandHandler) enqueueAndMaybeStart(s *discordgo.Session, i *discordgo.InteractionCreate, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		h.reply(s, i, "give me something to play", true)
		return
	}
	dest, ok := h.destination(s, i)
	if !ok {
		slog.Debug("user not in voice", "guildID", i.GuildID, "userID", userIDOf(i))
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}
	h.player.SetDestination(dest)
	h.notifier.SetChannel(i.ChannelID)

	item := h.enqueue(query, userIDOf(i))
	pos := len(h.player.GetQueue())
	slog.Info("enqueued", "guildID", i.GuildID, "userID", userIDOf(i), "input", item.OriginalInput, "kind", item.Kind, "position", pos)

	err := h.player.PlayFromQueue(context.Background())
	switch {
	case err == nil:
		h.reply(s, i, fmt.Sprintf("%s queued, starting playback", utils.EscapeMd(item.Title)), false)
	case errors.Is(err, plib.ErrAlreadyPlaying):
		h.reply(s, i, fmt.Sprintf("%s added to the queue at position %d", utils.EscapeMd(item.Title), pos), false)
	default:
		slog.Warn("play from queue failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "queued, but playback could not start: "+err.Error(), true)
	}
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := optString(i.ApplicationCommandData().Options, "query")
	slog.Info("cmd play", "guildID", i.GuildID, "userID", userIDOf(i), "query", query)
	h.enqueueAndMaybeStart(s, i, query)
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	res, err := h.player.SkipCurrent(context.Background())
	switch {
	case errors.Is(err, plib.ErrNothingPlaying):
		h.reply(s, i, "nothing is playing", true)
		return
	case errors.Is(err, plib.ErrSkipInProgress):
		h.reply(s, i, "already skipping, hang on", true)
		return
	case err != nil:
		slog.Warn("skip failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i))
	skipped := "current item"
	if res.Skipped != nil {
		skipped = utils.EscapeMd(res.Skipped.Title)
	}
	if res.Next == nil {
		h.reply(s, i, fmt.Sprintf("skipped %s, queue is empty", skipped), false)
		return
	}
	h.reply(s, i, fmt.Sprintf("skipped %s, up next: %s", skipped, utils.EscapeMd(res.Next.Title)), false)
}

func (h *CommandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.player.StopAndClearQueue(context.Background())
	slog.Info("cmd stop", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "u betcha, stopped and cleared", false)
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	page := int(optInt(i.ApplicationCommandData().Options, "page", 1))
	embed, err := ui.BuildQueueEmbed(h.player.GetQueueStatus(), h.player.IsFailed, page, queuePage)
	if err != nil {
		slog.Debug("build queue embed failed", "guildID", i.GuildID, "page", page, "err", err)
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Debug("cmd queue", "guildID", i.GuildID, "userID", userIDOf(i), "page", page)
	h.replyEmbed(s, i, embed, true)
}

func (h *CommandHandler) cmdStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.replyEmbed(s, i, ui.BuildStatusEmbed(h.player.Status()), false)
}

func (h *CommandHandler) cmdMove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options
	from, to := int(optInt(opts, "from", 0)), int(optInt(opts, "to", 0))
	if from < 1 || to < 1 {
		h.reply(s, i, "position must be at least 1", true)
		return
	}
	if err := h.player.MoveItem(from-1, to-1); err != nil {
		slog.Debug("move failed", "guildID", i.GuildID, "from", from, "to", to, "err", err)
		h.reply(s, i, err.Error(), true)
		return
	}
	slog.Info("cmd move", "guildID", i.GuildID, "userID", userIDOf(i), "from", from, "to", to)
	h.reply(s, i, fmt.Sprintf("moved item %d to position %d", from, to), false)
}

func (h *CommandHandler) cmdRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	pos := int(optInt(i.ApplicationCommandData().Options, "position", 0))
	if pos < 1 {
		h.reply(s, i, "position must be at least 1", true)
		return
	}
	it, err := h.player.Remove(pos - 1)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, plib.ErrRemoveCurrent) {
			msg = "that one is playing, use /skip instead"
		}
		slog.Debug("remove from queue failed", "guildID", i.GuildID, "pos", pos, "err", err)
		h.reply(s, i, msg, true)
		return
	}
	slog.Info("cmd remove", "guildID", i.GuildID, "userID", userIDOf(i), "pos", pos, "input", it.OriginalInput)
	h.reply(s, i, ":wastebasket: removed "+utils.EscapeMd(it.Title), false)
}

func (h *CommandHandler) cmdList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	files, err := h.lib.List()
	if err != nil {
		slog.Warn("list library failed", "dir", h.lib.Dir(), "err", err)
		h.reply(s, i, "couldn't read the library", true)
		return
	}
	h.replyEmbed(s, i, ui.BuildLibraryEmbed(files), true)
}

func (h *CommandHandler) cmdSearch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := strings.TrimSpace(optString(i.ApplicationCommandData().Options, "query"))
	if query == "" {
		h.reply(s, i, "give me something to search for", true)
		return
	}
	h.deferReply(s, i, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	results, err := h.search.Search(ctx, query, searchLimit)
	if err != nil {
		slog.Warn("search failed", "guildID", i.GuildID, "query", query, "err", err)
		h.editReply(s, i, "search failed")
		return
	}
	slog.Debug("cmd ytsearch", "guildID", i.GuildID, "query", query, "results", len(results))
	h.editReply(s, i, "", ui.BuildSearchEmbed(query, results))
}

func (h *CommandHandler) cmdHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	rows, err := h.repo.RecentPlaybacks(context.Background(), h.player.Destination().GuildID, historyLimit)
	if err != nil {
		slog.Warn("history lookup failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "failed to load history", true)
		return
	}
	h.replyEmbed(s, i, ui.BuildHistoryEmbed(rows), true)
}

func (h *CommandHandler) cmdFavorites(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	ctx := context.Background()
	name := optString(sub.Options, "name")
	switch sub.Name {
	case "create":
		fav, err := h.saveFavorite(ctx, i.GuildID, userIDOf(i), name, optString(sub.Options, "query"))
		if err != nil {
			switch {
			case errors.Is(err, plib.ErrNothingPlaying):
				h.reply(s, i, "nothing is playing; give a query to save", true)
			case errors.Is(err, repository.ErrInvalidFavorite):
				h.reply(s, i, "a name is required", true)
			case errors.Is(err, repository.ErrFavoriteExists):
				h.reply(s, i, "a favorite with that name already exists", true)
			default:
				slog.Warn("favorite create failed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name, "err", err)
				h.reply(s, i, "failed to create favorite", true)
			}
			return
		}
		slog.Info("favorite created", "guildID", i.GuildID, "userID", userIDOf(i), "name", fav.Name, "kind", fav.Kind)
		h.reply(s, i, fmt.Sprintf("👍 saved **%s** as `%s`", utils.EscapeMd(utils.Truncate(fav.Input, 200)), fav.Name), false)
	case "remove":
		err := h.favs.Remove(ctx, i.GuildID, userIDOf(i), name)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.reply(s, i, "no favorite with that name exists", true)
		case errors.Is(err, repository.ErrNotAuthor):
			h.reply(s, i, "you can only remove your own favorites", true)
		case err != nil:
			slog.Warn("favorite remove failed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name, "err", err)
			h.reply(s, i, "failed to remove favorite", true)
		default:
			slog.Info("favorite removed", "guildID", i.GuildID, "userID", userIDOf(i), "name", name)
			h.reply(s, i, "👍 favorite removed", false)
		}
	case "list":
		items, err := h.favs.List(ctx, i.GuildID)
		if err != nil {
			slog.Warn("favorite list failed", "guildID", i.GuildID, "err", err)
		}
		if len(items) == 0 {
			h.reply(s, i, "there aren't any favorites yet", false)
			return
		}
		h.reply(s, i, formatFavorites(items), true)
	case "use":
		f, err := h.favs.Use(ctx, i.GuildID, name)
		if err != nil {
			h.reply(s, i, "no favorite with that name exists", true)
			return
		}
		slog.Info("favorite used", "guildID", i.GuildID, "userID", userIDOf(i), "name", f.Name, "uses", f.Uses)
		h.enqueueAndMaybeStart(s, i, f.Input)
	}
}

// saveFavorite stores query under name, or the current item when query is
// empty.
func (h *CommandHandler) saveFavorite(ctx context.Context, guild, author, name, query string) (*repository.Favorite, error) {
	if strings.TrimSpace(query) != "" {
		return h.favs.Save(ctx, guild, author, name, query, media.Classify(query))
	}
	cur := h.player.Status().Current
	if cur == nil {
		return nil, plib.ErrNothingPlaying
	}
	return h.favs.SaveItem(ctx, guild, author, name, *cur)
}

func formatFavorites(items []repository.Favorite) string {
	var b strings.Builder
	for _, f := range items {
		fmt.Fprintf(&b, "• `%s` %s (%s, <@%s>", f.Name, utils.EscapeMd(utils.Truncate(f.Input, 120)), f.Kind, f.Author)
		if f.Uses > 0 {
			fmt.Fprintf(&b, ", used %d×", f.Uses)
		}
		b.WriteString(")\n")
	}
	return utils.Truncate(b.String(), 2000)
}

func optString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}

func optInt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string, def int64) int64 {
	for _, o := range opts {
		if o.Name == name {
			return o.IntValue()
		}
	}
	return def
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
