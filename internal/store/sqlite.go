package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relaykit/chatrelay/internal/domain"
)

// SQLite implements Store on a single sqlite database file.
// ":memory:" works for tests.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// The sqlite driver serializes writes; a single connection avoids
	// table-lock errors under concurrent event handling.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	s := &SQLite{db: db}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		photo_url TEXT,
		connection_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS room_users (
		room_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, user_id),
		FOREIGN KEY (room_id) REFERENCES rooms(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		user_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (room_id) REFERENCES rooms(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_room_users_user ON room_users(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) UpsertIdentity(ctx context.Context, user domain.User, connectionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, name, email, photo_url, connection_id) VALUES (?, ?, ?, ?, ?)`,
		string(user.ID), user.Name, nullable(user.Email), nullable(user.PhotoURL), nullable(connectionID),
	)
	return err
}

func (s *SQLite) GetIdentity(ctx context.Context, id domain.UserID) (*domain.User, error) {
	user := &domain.User{}
	var email, photoURL sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, photo_url FROM users WHERE id = ?`, string(id),
	).Scan(&user.ID, &user.Name, &email, &photoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	user.PhotoURL = photoURL.String
	return user, nil
}

func (s *SQLite) DeleteIdentity(ctx context.Context, id domain.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, string(id))
	return err
}

func (s *SQLite) CreateRoom(ctx context.Context, room domain.Room) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, created_at) VALUES (?, ?, ?)`,
		string(room.ID), string(room.Name), room.CreatedAt.UTC(),
	)
	return err
}

func (s *SQLite) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room := &domain.Room{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM rooms WHERE id = ?`, string(id),
	).Scan(&room.ID, &room.Name, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *SQLite) GetRoomWithMembersAndMessages(ctx context.Context, id domain.RoomID, msgLimit int) (*domain.Room, []domain.User, []domain.Message, error) {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	users, err := s.ListMembers(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	messages, err := s.ListMessages(ctx, id, msgLimit)
	if err != nil {
		return nil, nil, nil, err
	}
	return room, users, messages, nil
}

func (s *SQLite) ListRoomsWithCounts(ctx context.Context) ([]domain.RoomSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.created_at, COUNT(ru.user_id)
		FROM rooms r
		LEFT JOIN room_users ru ON r.id = ru.room_id
		GROUP BY r.id
		ORDER BY r.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.RoomSummary, 0)
	for rows.Next() {
		var rs domain.RoomSummary
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.CreatedAt, &rs.UserCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, rs)
	}
	return summaries, rows.Err()
}

func (s *SQLite) InsertMembershipIfAbsent(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_users (room_id, user_id) VALUES (?, ?)`,
		string(roomID), string(userID),
	)
	return err
}

func (s *SQLite) DeleteMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_users WHERE room_id = ? AND user_id = ?`,
		string(roomID), string(userID),
	)
	return err
}

func (s *SQLite) ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.photo_url
		FROM users u
		INNER JOIN room_users ru ON u.id = ru.user_id
		WHERE ru.room_id = ?
		ORDER BY ru.joined_at ASC
	`, string(roomID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		var email, photoURL sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &email, &photoURL); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.PhotoURL = photoURL.String
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLite) AppendMessage(ctx context.Context, msg domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, text, user_id, room_id, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Text, string(msg.User.ID), string(msg.RoomID), msg.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns up to limit most recent messages, oldest first.
// limit <= 0 returns the full history.
func (s *SQLite) ListMessages(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.text, m.room_id, m.timestamp, u.id, u.name, u.email, u.photo_url
		FROM messages m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.room_id = ?
		ORDER BY m.timestamp DESC, m.rowid DESC
	`
	args := []any{string(roomID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		var email, photoURL sql.NullString
		if err := rows.Scan(&m.ID, &m.Text, &m.RoomID, &m.Timestamp, &m.User.ID, &m.User.Name, &email, &photoURL); err != nil {
			return nil, err
		}
		m.User.Email = email.String
		m.User.PhotoURL = photoURL.String
		m.Timestamp = m.Timestamp.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

var _ Store = (*SQLite)(nil)
