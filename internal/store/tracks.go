package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

const trackColumns = `id,
	CASE WHEN event_id IS NOT NULL THEN 'event' ELSE 'list' END AS resource_kind,
	resource_id, title, artist, provider, provider_track_id, media_url, duration_ms,
	added_by, added_at, status, played_at, tally, position`

func scanTrack(row pgx.Row) (*model.Track, error) {
	var t model.Track
	err := row.Scan(&t.ID, &t.ResourceKind, &t.ResourceID, &t.Title, &t.Artist,
		&t.Provider, &t.ProviderTrackID, &t.MediaURL, &t.DurationMs,
		&t.AddedBy, &t.AddedAt, &t.Status, &t.PlayedAt, &t.Tally, &t.Position)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTracks(rows pgx.Rows) ([]model.Track, error) {
	defer rows.Close()
	out := []model.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// InsertTrack appends an unplayed track after the current last position.
func (q *Queries) InsertTrack(ctx context.Context, t *model.Track) error {
	var eventID, listID *string
	switch t.ResourceKind {
	case model.KindEvent:
		eventID = &t.ResourceID
	case model.KindList:
		listID = &t.ResourceID
	default:
		return apperr.InvalidArgument("unknown resource kind %q", t.ResourceKind)
	}

	err := q.q.QueryRow(ctx, `
		INSERT INTO tracks (event_id, list_id, title, artist, provider, provider_track_id,
			media_url, duration_ms, added_by, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, (
			SELECT COALESCE(MAX(position), 0) + 1
			FROM tracks
			WHERE resource_id = $10 AND status = 'unplayed'))
		RETURNING id, added_at, status, tally, position
	`, eventID, listID, t.Title, t.Artist, t.Provider, t.ProviderTrackID,
		t.MediaURL, t.DurationMs, t.AddedBy, t.ResourceID,
	).Scan(&t.ID, &t.AddedAt, &t.Status, &t.Tally, &t.Position)
	return mapErr(err, "track")
}

func (q *Queries) GetTrack(ctx context.Context, id string) (*model.Track, error) {
	t, err := scanTrack(q.q.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "track")
	}
	return t, nil
}

func (q *Queries) LockTrack(ctx context.Context, id string) (*model.Track, error) {
	t, err := scanTrack(q.q.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "track")
	}
	return t, nil
}

func (q *Queries) DeleteTrack(ctx context.Context, id string) error {
	tag, err := q.q.Exec(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "track")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("track not found")
	}
	return nil
}

func (q *Queries) MarkPlayed(ctx context.Context, id string) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE tracks SET status = 'played', played_at = now()
		WHERE id = $1 AND status = 'unplayed'
	`, id)
	if err != nil {
		return mapErr(err, "track")
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidArgument("track already played")
	}
	return nil
}

func (q *Queries) ListTracks(ctx context.Context, resourceID string) ([]model.Track, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE resource_id = $1
		ORDER BY (status = 'played'),
		         CASE WHEN status = 'unplayed' THEN position END,
		         played_at DESC, id
	`, resourceID)
	if err != nil {
		return nil, mapErr(err, "tracks")
	}
	return collectTracks(rows)
}

func (q *Queries) LockUnplayed(ctx context.Context, resourceID string) ([]model.Track, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE resource_id = $1 AND status = 'unplayed'
		ORDER BY id
		FOR UPDATE
	`, resourceID)
	if err != nil {
		return nil, mapErr(err, "tracks")
	}
	return collectTracks(rows)
}

// SetPositions writes the given positions in two steps: first every
// unplayed track of the resource is moved out of the positive range, then
// the final values are applied. A single pass could trip the unique
// (resource_id, position) index mid-statement.
func (q *Queries) SetPositions(ctx context.Context, resourceID string, placements []model.Placement) error {
	if len(placements) == 0 {
		return nil
	}
	if _, err := q.q.Exec(ctx, `
		UPDATE tracks SET position = -1 * position - 1000000
		WHERE resource_id = $1 AND status = 'unplayed'
	`, resourceID); err != nil {
		return mapErr(err, "track positions")
	}

	ids := make([]string, len(placements))
	positions := make([]int, len(placements))
	for i, p := range placements {
		ids[i] = p.TrackID
		positions[i] = p.Position
	}
	if _, err := q.q.Exec(ctx, `
		UPDATE tracks AS t SET position = p.position
		FROM unnest($2::uuid[], $3::int[]) AS p(id, position)
		WHERE t.id = p.id AND t.resource_id = $1
	`, resourceID, ids, positions); err != nil {
		return mapErr(err, "track positions")
	}
	return nil
}

func (q *Queries) SetTally(ctx context.Context, trackID string, tally int) error {
	tag, err := q.q.Exec(ctx, `UPDATE tracks SET tally = $2 WHERE id = $1`, trackID, tally)
	if err != nil {
		return mapErr(err, "track")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("track not found")
	}
	return nil
}

func (q *Queries) UpsertVote(ctx context.Context, v model.Vote) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO votes (account_id, track_id, resource_id, direction)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, track_id)
		DO UPDATE SET direction = EXCLUDED.direction, updated_at = now()
	`, v.AccountID, v.TrackID, v.ResourceID, v.Direction)
	return mapErr(err, "vote")
}

func (q *Queries) DeleteVote(ctx context.Context, accountID, trackID string) (bool, error) {
	tag, err := q.q.Exec(ctx, `DELETE FROM votes WHERE account_id = $1 AND track_id = $2`, accountID, trackID)
	if err != nil {
		return false, mapErr(err, "vote")
	}
	return tag.RowsAffected() > 0, nil
}

func (q *Queries) CountVotes(ctx context.Context, trackID string) (up, down int, err error) {
	err = q.q.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE direction = 1),
		       COUNT(*) FILTER (WHERE direction = -1)
		FROM votes
		WHERE track_id = $1
	`, trackID).Scan(&up, &down)
	if err != nil {
		return 0, 0, mapErr(err, "votes")
	}
	return up, down, nil
}

func (q *Queries) VotesBy(ctx context.Context, accountID, resourceID string) (map[string]int, error) {
	rows, err := q.q.Query(ctx, `
		SELECT track_id, direction
		FROM votes
		WHERE account_id = $1 AND resource_id = $2
	`, accountID, resourceID)
	if err != nil {
		return nil, mapErr(err, "votes")
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var trackID string
		var dir int
		if err := rows.Scan(&trackID, &dir); err != nil {
			return nil, err
		}
		out[trackID] = dir
	}
	return out, rows.Err()
}
