package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	sqlite "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrFavoriteExists = errors.New("favorite already exists")
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) AddPlayback(ctx context.Context, p *Playback) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO play_history(guild_id, input, title, kind, requested_by, outcome, error, started_at, ended_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		p.GuildID, p.Input, p.Title, p.Kind, p.RequestedBy, string(p.Outcome), p.Error,
		p.StartedAt.Unix(), p.EndedAt.Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "insert playback")
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// RecentPlaybacks returns up to limit attempts for guild, newest first.
func (r *Repo) RecentPlaybacks(ctx context.Context, guild string, limit int) ([]Playback, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, guild_id, input, title, kind, requested_by, outcome, error, started_at, ended_at
		FROM play_history WHERE guild_id = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`, guild, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query playbacks")
	}
	defer rows.Close()

	var out []Playback
	for rows.Next() {
		var p Playback
		var outcome string
		var started, ended int64
		if err := rows.Scan(&p.ID, &p.GuildID, &p.Input, &p.Title, &p.Kind, &p.RequestedBy,
			&outcome, &p.Error, &started, &ended); err != nil {
			return nil, errors.Wrap(err, "scan playback")
		}
		p.Outcome = Outcome(outcome)
		p.StartedAt = time.Unix(started, 0)
		p.EndedAt = time.Unix(ended, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

const favoriteCols = `id, guild_id, author_id, name, query, kind, uses, last_used_at`

func scanFavorite(sc interface{ Scan(...any) error }) (Favorite, error) {
	var f Favorite
	var last int64
	if err := sc.Scan(&f.ID, &f.GuildID, &f.Author, &f.Name, &f.Input, &f.Kind, &f.Uses, &last); err != nil {
		return Favorite{}, err
	}
	if last > 0 {
		f.LastUsedAt = time.Unix(last, 0)
	}
	return f, nil
}

// AddFavorite stores f. A name already taken in the guild yields
// ErrFavoriteExists.
func (r *Repo) AddFavorite(ctx context.Context, f *Favorite) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites(guild_id, author_id, name, query, kind) VALUES (?,?,?,?,?)`,
		f.GuildID, f.Author, f.Name, f.Input, f.Kind,
	)
	if err != nil {
		var serr sqlite.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite.ErrConstraintUnique {
			return ErrFavoriteExists
		}
		return errors.Wrap(err, "insert favorite")
	}
	f.ID, _ = res.LastInsertId()
	return nil
}

func (r *Repo) RemoveFavorite(ctx context.Context, guild, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	if err != nil {
		return 0, errors.Wrap(err, "delete favorite")
	}
	return res.RowsAffected()
}

func (r *Repo) FindFavorite(ctx context.Context, guild, name string) (*Favorite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+favoriteCols+` FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	f, err := scanFavorite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan favorite")
	}
	return &f, nil
}

// MarkFavoriteUsed bumps the use counter of the favorite with id.
func (r *Repo) MarkFavoriteUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE favorites SET uses = uses + 1, last_used_at = ? WHERE id = ?`, at.Unix(), id)
	return errors.Wrap(err, "mark favorite used")
}

// ListFavorites returns the guild's favorites, most used first.
func (r *Repo) ListFavorites(ctx context.Context, guild string) ([]Favorite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+favoriteCols+` FROM favorites WHERE guild_id=? ORDER BY uses DESC, name ASC`, guild)
	if err != nil {
		return nil, errors.Wrap(err, "query favorites")
	}
	defer rows.Close()
	var out []Favorite
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan favorite")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
