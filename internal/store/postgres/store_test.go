package postgres

import (
	"os"
	"testing"

	"github.com/ankittk/devcrew/internal/store/storetest"
)

func TestConformance_skipIfNoDatabaseURL(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres test")
	}
	st, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	storetest.Run(t, st)
}
