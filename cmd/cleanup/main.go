package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

// cleanup removes expired sessions from every credential document. The
// server does this on a timer; this command is for operators who want an
// immediate sweep.
func main() {
	url := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "usage: cleanup <connection-string> (or set DATABASE_URL)")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx, `
		UPDATE credentials
		SET sessions = COALESCE((
			SELECT jsonb_agg(s)
			FROM jsonb_array_elements(sessions) AS s
			WHERE (s->>'expiresAt')::timestamptz > $1
		), '[]'::jsonb),
		    version = version + 1,
		    updated_at = $1
		WHERE EXISTS (
			SELECT 1
			FROM jsonb_array_elements(sessions) AS s
			WHERE (s->>'expiresAt')::timestamptz <= $1
		)`, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session purge failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Purged expired sessions from %d credentials\n", tag.RowsAffected())
}
