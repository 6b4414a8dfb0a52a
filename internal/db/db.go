// ABOUTME: Traffic log that records every connection and JSON-RPC message in SQLite
// ABOUTME: Provides session tracking, message logging and query helpers for diagnostics

package db

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harper/php-integrator/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	conn *sql.DB
}

type MessageDirection string

const (
	DirectionClientToServer MessageDirection = "client_to_server"
	DirectionServerToClient MessageDirection = "server_to_client"
)

// Open opens or creates the SQLite database
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Sessions write from their own goroutines
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Traffic log initialized at %s", dbPath)
	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// CreateSession records a newly accepted connection
func (db *DB) CreateSession(sessionID, transport, remoteAddr string) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (id, transport, remote_addr) VALUES (?, ?, ?)",
		sessionID, transport, remoteAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// UpdateSessionProject stores the project name most recently sent on a connection
func (db *DB) UpdateSessionProject(sessionID, projectName string) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET project_name = ? WHERE id = ?",
		projectName, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project name: %w", err)
	}
	return nil
}

// CloseSession marks a session as closed
func (db *DB) CloseSession(sessionID string) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET closed_at = CURRENT_TIMESTAMP WHERE id = ?",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// LogMessage logs a frame body with its direction and whatever JSON-RPC
// fields can be read from it. Bodies that are not JSON are stored as-is.
func (db *DB) LogMessage(sessionID string, direction MessageDirection, rawMessage []byte) error {
	var msg map[string]json.RawMessage
	var messageType, method, jsonrpcID sql.NullString
	var errorCode sql.NullInt64

	if err := json.Unmarshal(rawMessage, &msg); err == nil {
		if m, ok := msg["method"]; ok {
			messageType = sql.NullString{String: "request", Valid: true}
			var name string
			if json.Unmarshal(m, &name) == nil {
				method = sql.NullString{String: name, Valid: true}
			}
		} else if _, ok := msg["result"]; ok {
			messageType = sql.NullString{String: "response", Valid: true}
		}

		if raw, ok := msg["error"]; ok && string(raw) != "null" {
			messageType = sql.NullString{String: "response", Valid: true}
			var e struct {
				Code int64 `json:"code"`
			}
			if json.Unmarshal(raw, &e) == nil {
				errorCode = sql.NullInt64{Int64: e.Code, Valid: true}
			}
		}

		if id, ok := msg["id"]; ok {
			jsonrpcID = sql.NullString{String: string(id), Valid: true}
		}
	}

	_, err := db.conn.Exec(
		`INSERT INTO messages (session_id, direction, message_type, method, jsonrpc_id, error_code, raw_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, direction, messageType, method, jsonrpcID, errorCode, string(rawMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

// GetSessionMessages retrieves all messages for a session in arrival order
func (db *DB) GetSessionMessages(sessionID string) ([]Message, error) {
	rows, err := db.conn.Query(
		`SELECT id, session_id, direction, message_type, method, jsonrpc_id, error_code, raw_message, timestamp
		 FROM messages WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var messageType, method, jsonrpcID sql.NullString
		var errorCode sql.NullInt64

		err := rows.Scan(&m.ID, &m.SessionID, &m.Direction, &messageType, &method, &jsonrpcID, &errorCode, &m.RawMessage, &m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		m.MessageType = messageType.String
		m.Method = method.String
		m.JSONRPCID = jsonrpcID.String
		if errorCode.Valid {
			code := int(errorCode.Int64)
			m.ErrorCode = &code
		}

		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// Message represents a logged message
type Message struct {
	ID          int64
	SessionID   string
	Direction   MessageDirection
	MessageType string
	Method      string
	JSONRPCID   string
	ErrorCode   *int
	RawMessage  string
	Timestamp   time.Time
}

// GetAllSessions retrieves all sessions, newest first
func (db *DB) GetAllSessions() ([]Session, error) {
	rows, err := db.conn.Query(
		`SELECT id, transport, remote_addr, project_name, created_at, closed_at
		 FROM sessions ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var projectName sql.NullString
		var closedAt sql.NullTime

		err := rows.Scan(&s.ID, &s.Transport, &s.RemoteAddr, &projectName, &s.CreatedAt, &closedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		s.ProjectName = projectName.String
		if closedAt.Valid {
			s.ClosedAt = &closedAt.Time
		}

		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Session represents a logged connection
type Session struct {
	ID          string
	Transport   string
	RemoteAddr  string
	ProjectName string
	CreatedAt   time.Time
	ClosedAt    *time.Time
}
