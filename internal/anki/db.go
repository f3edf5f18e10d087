package anki

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// openCollection opens the Anki collection read-only. The busy timeout
// keeps us from failing instantly while Anki itself holds the write lock.
func openCollection(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", buildCollectionDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	// A single connection is all the read path needs
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to collection: %w", err)
	}

	return db, nil
}

// buildCollectionDSN constructs the SQLite connection string
func buildCollectionDSN(path string) string {
	params := url.Values{}
	params.Set("mode", "ro")
	params.Set("_busy_timeout", "5000")

	return fmt.Sprintf("file:%s?%s", path, params.Encode())
}
