package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS hiring_requests (
		id                 CHAR(36)     NOT NULL PRIMARY KEY,
		client_id          VARCHAR(64)  NOT NULL,
		category_id        VARCHAR(64)  NOT NULL,
		city               VARCHAR(128) NOT NULL,
		event_date         DATETIME(6)  NOT NULL,
		budget_min         BIGINT       NOT NULL,
		budget_max         BIGINT       NOT NULL,
		additional_details TEXT         NOT NULL,
		status             VARCHAR(16)  NOT NULL,
		response_count     INT          NOT NULL DEFAULT 0,
		created_at         DATETIME(6)  NOT NULL,
		expires_at         DATETIME(6)  NOT NULL,
		KEY idx_hiring_requests_expiry (status, expires_at),
		KEY idx_hiring_requests_client (client_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS hiring_responses (
		id             CHAR(36)    NOT NULL PRIMARY KEY,
		request_id     CHAR(36)    NOT NULL,
		artist_id      VARCHAR(64) NOT NULL,
		response_type  VARCHAR(16) NOT NULL,
		proposed_price BIGINT      NULL,
		message        TEXT        NOT NULL,
		status         VARCHAR(16) NOT NULL,
		created_at     DATETIME(6) NOT NULL,
		KEY idx_hiring_responses_request (request_id, created_at),
		CONSTRAINT fk_hiring_responses_request FOREIGN KEY (request_id) REFERENCES hiring_requests (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the hiring tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
