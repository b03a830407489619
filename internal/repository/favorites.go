package repository

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/queue"
)

var ErrInvalidFavorite = errors.New("favorite needs a name and an input")

// FavoritesService saves queue inputs under short names so they can be
// queued again later.
type FavoritesService struct {
	repo *Repo
	now  func() time.Time
}

func NewFavoritesService(repo *Repo) *FavoritesService {
	return &FavoritesService{repo: repo, now: time.Now}
}

// Save stores input under name together with the kind it was classified
// as. Names are unique per guild.
func (f *FavoritesService) Save(ctx context.Context, guild, author, name, input string, kind queue.Kind) (*Favorite, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	input = strings.TrimSpace(input)
	if name == "" || input == "" {
		return nil, ErrInvalidFavorite
	}
	fav := &Favorite{GuildID: guild, Author: author, Name: name, Input: input, Kind: kind.String()}
	if err := f.repo.AddFavorite(ctx, fav); err != nil {
		return nil, err
	}
	return fav, nil
}

// SaveItem stores the input of a queue item, e.g. the one playing now.
func (f *FavoritesService) SaveItem(ctx context.Context, guild, author, name string, it queue.Item) (*Favorite, error) {
	return f.Save(ctx, guild, author, name, it.OriginalInput, it.Kind)
}

// Remove deletes name when author saved it.
func (f *FavoritesService) Remove(ctx context.Context, guild, author, name string) error {
	fav, err := f.repo.FindFavorite(ctx, guild, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return err
	}
	if fav.Author != author {
		return ErrNotAuthor
	}
	_, err = f.repo.RemoveFavorite(ctx, guild, fav.Name)
	return err
}

// Use looks name up and counts the use.
func (f *FavoritesService) Use(ctx context.Context, guild, name string) (*Favorite, error) {
	fav, err := f.repo.FindFavorite(ctx, guild, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return nil, err
	}
	if err := f.repo.MarkFavoriteUsed(ctx, fav.ID, f.now()); err != nil {
		return nil, err
	}
	fav.Uses++
	return fav, nil
}

func (f *FavoritesService) List(ctx context.Context, guild string) ([]Favorite, error) {
	return f.repo.ListFavorites(ctx, guild)
}

var ErrNotAuthor = errors.New("only the author can remove a favorite")
