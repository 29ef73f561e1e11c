package catalog

import (
	"context"
	"fmt"
)

// Column types differ only in a few places; the rest of the DDL is
// shared text with these substituted.
type ddlTypes struct {
	text, money, rating, boolean, timestamp, list string
}

var ddlFor = map[Dialect]ddlTypes{
	SQLite: {
		text:      "TEXT",
		money:     "REAL",
		rating:    "REAL",
		boolean:   "INTEGER",
		timestamp: "TEXT",
		list:      "TEXT",
	},
	Postgres: {
		text:      "TEXT",
		money:     "NUMERIC(12,2)",
		rating:    "NUMERIC(3,2)",
		boolean:   "BOOLEAN",
		timestamp: "TIMESTAMPTZ",
		list:      "JSONB",
	},
}

func schemaStatements(d Dialect) []string {
	t := ddlFor[d]
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS hotels (
			id            %[1]s PRIMARY KEY,
			name          %[1]s NOT NULL,
			city          %[1]s NOT NULL DEFAULT '',
			country       %[1]s NOT NULL DEFAULT '',
			address       %[1]s NOT NULL DEFAULT '',
			rating        %[2]s NOT NULL DEFAULT 0,
			reviews_count INTEGER NOT NULL DEFAULT 0,
			phone         %[1]s NOT NULL DEFAULT '',
			contact_email %[1]s NOT NULL DEFAULT '',
			description   %[1]s NOT NULL DEFAULT '',
			currency      %[1]s NOT NULL DEFAULT 'BDT'
		)`, t.text, t.rating),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rooms (
			id              %[1]s PRIMARY KEY,
			hotel_id        %[1]s NOT NULL REFERENCES hotels(id) ON DELETE CASCADE,
			room_type       %[1]s NOT NULL,
			price_per_night %[2]s NOT NULL,
			currency        %[1]s NOT NULL DEFAULT 'BDT',
			capacity        INTEGER NOT NULL DEFAULT 1,
			bed_type        %[1]s NOT NULL DEFAULT '',
			amenities       %[3]s NOT NULL DEFAULT '[]',
			available_count INTEGER NOT NULL DEFAULT 0
		)`, t.text, t.money, t.list),
		`CREATE INDEX IF NOT EXISTS idx_rooms_hotel ON rooms(hotel_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS packages (
			id                %[1]s PRIMARY KEY,
			name              %[1]s NOT NULL,
			destination       %[1]s NOT NULL DEFAULT '',
			country           %[1]s NOT NULL DEFAULT '',
			category          %[1]s NOT NULL DEFAULT '',
			duration_days     INTEGER NOT NULL DEFAULT 1,
			price             %[2]s NOT NULL,
			currency          %[1]s NOT NULL DEFAULT 'BDT',
			max_participants  INTEGER NOT NULL DEFAULT 1,
			available_slots   INTEGER NOT NULL DEFAULT 0,
			rating            %[3]s NOT NULL DEFAULT 0,
			reviews_count     INTEGER NOT NULL DEFAULT 0,
			included_services %[4]s NOT NULL DEFAULT '[]',
			description       %[1]s NOT NULL DEFAULT '',
			is_active         %[5]s NOT NULL DEFAULT TRUE
		)`, t.text, t.money, t.rating, t.list, t.boolean),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS places (
			id                 %[1]s PRIMARY KEY,
			name               %[1]s NOT NULL,
			city               %[1]s NOT NULL DEFAULT '',
			state_province     %[1]s NOT NULL DEFAULT '',
			country            %[1]s NOT NULL DEFAULT '',
			category           %[1]s NOT NULL DEFAULT '',
			rating             %[2]s NOT NULL DEFAULT 0,
			famous_for         %[3]s NOT NULL DEFAULT '[]',
			activities         %[3]s NOT NULL DEFAULT '[]',
			best_time_to_visit %[1]s NOT NULL DEFAULT '',
			description        %[1]s NOT NULL DEFAULT '',
			popular_ranking    INTEGER NOT NULL DEFAULT 0,
			visit_count        INTEGER NOT NULL DEFAULT 0,
			is_active          %[4]s NOT NULL DEFAULT TRUE,
			is_featured        %[4]s NOT NULL DEFAULT FALSE
		)`, t.text, t.rating, t.list, t.boolean),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_favorites (
			id         %[1]s PRIMARY KEY,
			user_id    %[1]s NOT NULL,
			item_type  %[1]s NOT NULL,
			item_id    %[1]s NOT NULL,
			created_at %[2]s NOT NULL,
			UNIQUE (user_id, item_type, item_id)
		)`, t.text, t.timestamp),
		`CREATE INDEX IF NOT EXISTS idx_favorites_user ON user_favorites(user_id, created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS bookings (
			id                  %[1]s PRIMARY KEY,
			booking_reference   %[1]s NOT NULL,
			user_id             %[1]s NOT NULL,
			booking_type        %[1]s NOT NULL,
			item_id             %[1]s NOT NULL,
			primary_guest_name  %[1]s NOT NULL,
			primary_guest_email %[1]s NOT NULL,
			primary_guest_phone %[1]s NOT NULL,
			total_participants  INTEGER NOT NULL DEFAULT 1,
			base_price          %[2]s NOT NULL,
			total_amount        %[2]s NOT NULL,
			currency            %[1]s NOT NULL DEFAULT 'BDT',
			booking_status      %[1]s NOT NULL DEFAULT 'pending',
			payment_status      %[1]s NOT NULL DEFAULT 'pending',
			created_at          %[3]s NOT NULL
		)`, t.text, t.money, t.timestamp),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_reference ON bookings(booking_reference)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id, created_at)`,
	}
}

// Migrate creates any missing tables and indexes. It is safe to run on
// every start.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.logger.Debug("catalog schema applied", "dialect", s.dialect.String())
	return nil
}
