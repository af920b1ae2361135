package store

import "strings"

// schemaTemplate uses {{pk}}, {{bigint}}, {{blob}}, {{real}}, {{ts}},
// {{bool}} and {{now}} for the dialect specific parts.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS missions (
    id            {{pk}},
    uuid          TEXT NOT NULL UNIQUE,
    session_id    TEXT NOT NULL DEFAULT '',
    mode          TEXT NOT NULL DEFAULT 'grid',
    state         TEXT NOT NULL DEFAULT 'planning',
    start_x       INTEGER NOT NULL DEFAULT 0,
    start_y       INTEGER NOT NULL DEFAULT 0,
    pos_x         INTEGER NOT NULL DEFAULT 0,
    pos_y         INTEGER NOT NULL DEFAULT 0,
    heading       TEXT NOT NULL DEFAULT 'forward',
    grid_width    INTEGER NOT NULL DEFAULT 0,
    grid_height   INTEGER NOT NULL DEFAULT 0,
    steps         INTEGER NOT NULL DEFAULT 0,
    actor         TEXT NOT NULL DEFAULT 'system',
    error_detail  TEXT NOT NULL DEFAULT '',
    created_at    {{ts}} NOT NULL DEFAULT ({{now}}),
    updated_at    {{ts}} NOT NULL DEFAULT ({{now}}),
    completed_at  {{ts}}
);
CREATE INDEX IF NOT EXISTS idx_missions_state ON missions(state);

CREATE TABLE IF NOT EXISTS mission_goals (
    id          {{pk}},
    mission_id  {{bigint}} NOT NULL REFERENCES missions(id),
    seq         INTEGER NOT NULL,
    x           INTEGER NOT NULL,
    y           INTEGER NOT NULL,
    status      TEXT NOT NULL DEFAULT 'pending',
    reached_at  {{ts}},
    UNIQUE (mission_id, seq)
);

CREATE TABLE IF NOT EXISTS mission_steps (
    id          {{pk}},
    mission_id  {{bigint}} NOT NULL REFERENCES missions(id),
    seq         INTEGER NOT NULL,
    state       TEXT NOT NULL,
    mode        TEXT NOT NULL DEFAULT '',
    direction   TEXT NOT NULL DEFAULT '',
    moved       {{bool}} NOT NULL DEFAULT {{false}},
    pos_x       INTEGER NOT NULL DEFAULT 0,
    pos_y       INTEGER NOT NULL DEFAULT 0,
    target_x    INTEGER,
    target_y    INTEGER,
    battery     {{real}},
    hold        TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    created_at  {{ts}} NOT NULL DEFAULT ({{now}})
);
CREATE INDEX IF NOT EXISTS idx_mission_steps_mission ON mission_steps(mission_id, seq);

CREATE TABLE IF NOT EXISTS obstacles (
    id          {{pk}},
    mission_id  {{bigint}} NOT NULL REFERENCES missions(id),
    x           INTEGER NOT NULL,
    y           INTEGER NOT NULL,
    source      TEXT NOT NULL DEFAULT 'manual',
    created_at  {{ts}} NOT NULL DEFAULT ({{now}}),
    UNIQUE (mission_id, x, y)
);

CREATE TABLE IF NOT EXISTS outbox (
    id          {{pk}},
    topic       TEXT NOT NULL,
    payload     {{blob}} NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    station_id  TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  {{ts}} NOT NULL DEFAULT ({{now}}),
    sent_at     {{ts}}
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at);

CREATE TABLE IF NOT EXISTS audit_log (
    id          {{pk}},
    entity_type TEXT NOT NULL,
    entity_id   {{bigint}} NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  {{ts}} NOT NULL DEFAULT ({{now}})
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            {{pk}},
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    {{ts}} NOT NULL DEFAULT ({{now}})
);
`

func schema(d Dialect) string {
	falseLit := "0"
	if d.BoolType() == "BOOLEAN" {
		falseLit = "FALSE"
	}
	return strings.NewReplacer(
		"{{pk}}", d.AutoIncrementPK(),
		"{{bigint}}", d.BigInt(),
		"{{blob}}", d.BlobType(),
		"{{real}}", d.RealType(),
		"{{ts}}", d.TimestampType(),
		"{{bool}}", d.BoolType(),
		"{{false}}", falseLit,
		"{{now}}", d.Now(),
	).Replace(schemaTemplate)
}
