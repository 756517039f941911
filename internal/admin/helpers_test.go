package admin

import (
	"time"

	"github.com/jackc/pgx/v5"
)

func fixedTime() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func pgxNoRows() error {
	return pgx.ErrNoRows
}
