package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

const eventColumns = `id, owner_id, name, visibility, access_tier,
	geo_lat, geo_lng, geo_radius_m, starts_at, ends_at,
	active, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var ev model.Event
	var geoLat, geoLng *float64
	var geoRadius *int
	var startsAt, endsAt *time.Time
	err := row.Scan(
		&ev.ID, &ev.OwnerID, &ev.Name, &ev.Visibility, &ev.AccessTier,
		&geoLat, &geoLng, &geoRadius, &startsAt, &endsAt,
		&ev.Active, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if geoLat != nil && geoLng != nil && geoRadius != nil {
		ev.Fence = &model.Fence{Lat: *geoLat, Lng: *geoLng, RadiusM: *geoRadius}
	}
	ev.StartsAt = startsAt
	ev.EndsAt = endsAt
	return &ev, nil
}

func fenceArgs(f *model.Fence) (lat, lng *float64, radius *int) {
	if f == nil {
		return nil, nil, nil
	}
	return &f.Lat, &f.Lng, &f.RadiusM
}

func (q *Queries) CreateEvent(ctx context.Context, ev *model.Event) error {
	lat, lng, radius := fenceArgs(ev.Fence)
	err := q.q.QueryRow(ctx, `
		INSERT INTO events (owner_id, name, visibility, access_tier,
			geo_lat, geo_lng, geo_radius_m, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, active, created_at, updated_at
	`, ev.OwnerID, ev.Name, string(ev.Visibility), string(ev.AccessTier),
		lat, lng, radius, ev.StartsAt, ev.EndsAt,
	).Scan(&ev.ID, &ev.Active, &ev.CreatedAt, &ev.UpdatedAt)
	return mapErr(err, "event")
}

func (q *Queries) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	ev, err := scanEvent(q.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "event")
	}
	return ev, nil
}

func (q *Queries) UpdateEvent(ctx context.Context, ev *model.Event) error {
	lat, lng, radius := fenceArgs(ev.Fence)
	err := q.q.QueryRow(ctx, `
		UPDATE events
		SET name = $2, visibility = $3, access_tier = $4,
			geo_lat = $5, geo_lng = $6, geo_radius_m = $7,
			starts_at = $8, ends_at = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, ev.ID, ev.Name, string(ev.Visibility), string(ev.AccessTier),
		lat, lng, radius, ev.StartsAt, ev.EndsAt,
	).Scan(&ev.UpdatedAt)
	return mapErr(err, "event")
}

func (q *Queries) ListEvents(ctx context.Context, viewerID string) ([]model.Event, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		WHERE e.owner_id = $1
		   OR (e.active AND (e.visibility = 'public' OR EXISTS (
				SELECT 1 FROM invitations i
				WHERE i.resource_id = e.id AND i.invitee_id = $1 AND i.state = 'accepted')))
		ORDER BY e.created_at DESC, e.id
	`, viewerID)
	if err != nil {
		return nil, mapErr(err, "events")
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

const listColumns = `id, owner_id, name, description, visibility, edit_policy, active, created_at, updated_at`

func scanList(row pgx.Row) (*model.List, error) {
	var l model.List
	err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Description, &l.Visibility,
		&l.EditPolicy, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (q *Queries) CreateList(ctx context.Context, l *model.List) error {
	err := q.q.QueryRow(ctx, `
		INSERT INTO lists (owner_id, name, description, visibility, edit_policy)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, active, created_at, updated_at
	`, l.OwnerID, l.Name, l.Description, string(l.Visibility), string(l.EditPolicy),
	).Scan(&l.ID, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	return mapErr(err, "list")
}

func (q *Queries) GetList(ctx context.Context, id string) (*model.List, error) {
	l, err := scanList(q.q.QueryRow(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "list")
	}
	return l, nil
}

func (q *Queries) UpdateList(ctx context.Context, l *model.List) error {
	err := q.q.QueryRow(ctx, `
		UPDATE lists
		SET name = $2, description = $3, visibility = $4, edit_policy = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, l.ID, l.Name, l.Description, string(l.Visibility), string(l.EditPolicy),
	).Scan(&l.UpdatedAt)
	return mapErr(err, "list")
}

func (q *Queries) ListLists(ctx context.Context, viewerID string) ([]model.List, error) {
	rows, err := q.q.Query(ctx, `
		SELECT `+listColumns+`
		FROM lists l
		WHERE l.owner_id = $1
		   OR (l.active AND (l.visibility = 'public' OR EXISTS (
				SELECT 1 FROM invitations i
				WHERE i.resource_id = l.id AND i.invitee_id = $1 AND i.state = 'accepted')))
		ORDER BY l.created_at DESC, l.id
	`, viewerID)
	if err != nil {
		return nil, mapErr(err, "lists")
	}
	defer rows.Close()

	out := []model.List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (q *Queries) GetResource(ctx context.Context, ref model.ResourceRef, lock bool) (model.Resource, error) {
	suffix := ""
	if lock {
		suffix = " FOR UPDATE"
	}
	switch ref.Kind {
	case model.KindEvent:
		ev, err := scanEvent(q.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`+suffix, ref.ID))
		if err != nil {
			return model.Resource{}, mapErr(err, "event")
		}
		return ev.Resource(), nil
	case model.KindList:
		l, err := scanList(q.q.QueryRow(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`+suffix, ref.ID))
		if err != nil {
			return model.Resource{}, mapErr(err, "list")
		}
		return l.Resource(), nil
	default:
		return model.Resource{}, apperr.InvalidArgument("unknown resource kind %q", ref.Kind)
	}
}

func (q *Queries) SetActive(ctx context.Context, ref model.ResourceRef, active bool) error {
	var table string
	switch ref.Kind {
	case model.KindEvent:
		table = "events"
	case model.KindList:
		table = "lists"
	default:
		return apperr.InvalidArgument("unknown resource kind %q", ref.Kind)
	}
	tag, err := q.q.Exec(ctx, `UPDATE `+table+` SET active = $2, updated_at = now() WHERE id = $1`, ref.ID, active)
	if err != nil {
		return mapErr(err, string(ref.Kind))
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("%s not found", ref.Kind)
	}
	return nil
}
