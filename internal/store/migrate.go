package store

import (
	"context"
	"fmt"
	"log/slog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         uuid PRIMARY KEY,
		handle     TEXT NOT NULL UNIQUE,
		contact    TEXT NOT NULL UNIQUE,
		tier       TEXT NOT NULL DEFAULT 'standard' CHECK (tier IN ('standard', 'elevated')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS relationship_requests (
		id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		requester_id uuid NOT NULL REFERENCES accounts(id),
		recipient_id uuid NOT NULL REFERENCES accounts(id),
		state        TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'accepted', 'declined')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		resolved_at  TIMESTAMPTZ,
		CHECK (requester_id <> recipient_id)
	)`,
	// at most one pending request per ordered pair
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_relationship_requests_pending
		ON relationship_requests(requester_id, recipient_id)
		WHERE state = 'pending'`,

	`CREATE TABLE IF NOT EXISTS relationships (
		owner_id   uuid NOT NULL REFERENCES accounts(id),
		peer_id    uuid NOT NULL REFERENCES accounts(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (owner_id, peer_id),
		CHECK (owner_id <> peer_id)
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id     uuid NOT NULL REFERENCES accounts(id),
		name         TEXT NOT NULL,
		visibility   TEXT NOT NULL DEFAULT 'public' CHECK (visibility IN ('public', 'private')),
		access_tier  TEXT NOT NULL DEFAULT 'free' CHECK (access_tier IN ('free', 'premium', 'location')),
		geo_lat      DOUBLE PRECISION,
		geo_lng      DOUBLE PRECISION,
		geo_radius_m INT,
		starts_at    TIMESTAMPTZ,
		ends_at      TIMESTAMPTZ,
		active       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS lists (
		id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id    uuid NOT NULL REFERENCES accounts(id),
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		visibility  TEXT NOT NULL DEFAULT 'public' CHECK (visibility IN ('public', 'private')),
		edit_policy TEXT NOT NULL DEFAULT 'open' CHECK (edit_policy IN ('open', 'invite_only')),
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS invitations (
		id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		resource_kind TEXT NOT NULL CHECK (resource_kind IN ('event', 'list')),
		resource_id   uuid NOT NULL,
		invitee_id    uuid NOT NULL REFERENCES accounts(id),
		grantor_id    uuid NOT NULL REFERENCES accounts(id),
		role          TEXT NOT NULL DEFAULT 'guest' CHECK (role IN ('guest', 'collaborator', 'manager')),
		state         TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'accepted', 'declined')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (resource_id, invitee_id)
	)`,

	`CREATE TABLE IF NOT EXISTS tracks (
		id                uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		event_id          uuid REFERENCES events(id),
		list_id           uuid REFERENCES lists(id),
		resource_id       uuid GENERATED ALWAYS AS (COALESCE(event_id, list_id)) STORED,
		title             TEXT NOT NULL,
		artist            TEXT NOT NULL DEFAULT '',
		provider          TEXT NOT NULL DEFAULT '',
		provider_track_id TEXT NOT NULL DEFAULT '',
		media_url         TEXT NOT NULL DEFAULT '',
		duration_ms       INT NOT NULL DEFAULT 0,
		added_by          uuid NOT NULL REFERENCES accounts(id),
		added_at          TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		status            TEXT NOT NULL DEFAULT 'unplayed' CHECK (status IN ('unplayed', 'played')),
		played_at         TIMESTAMPTZ,
		tally             INT NOT NULL DEFAULT 0 CHECK (tally >= 0),
		position          INT NOT NULL,
		CHECK (num_nonnulls(event_id, list_id) = 1),
		CHECK (provider_track_id <> '' OR media_url <> '')
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tracks_resource ON tracks(resource_id)`,
	// played tracks keep their last position and leave the ranking
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tracks_resource_position
		ON tracks(resource_id, position)
		WHERE status = 'unplayed'`,

	`CREATE TABLE IF NOT EXISTS votes (
		account_id  uuid NOT NULL REFERENCES accounts(id),
		track_id    uuid NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		resource_id uuid NOT NULL,
		direction   SMALLINT NOT NULL CHECK (direction IN (-1, 1)),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, track_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_resource_account ON votes(resource_id, account_id)`,
}

// Migrate creates the schema. It is safe to run on every start.
func Migrate(ctx context.Context, db Querier) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			slog.Error("migrate", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
