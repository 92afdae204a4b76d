// Package dbtest provides throwaway databases carrying the real schema.
package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var seq atomic.Int64

// New opens a private in-memory sqlite database, migrates it and closes it
// when the test ends
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	name := fmt.Sprintf("file:learnstats_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := database.OpenSQLite(context.Background(), name)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// CreateUser inserts a user with the given zone
func CreateUser(t testing.TB, db *sqlx.DB, id int64, tz string) *models.User {
	t.Helper()

	user := &models.User{ID: id, Username: fmt.Sprintf("user%d", id), TimeZone: tz}
	require.NoError(t, database.NewUserRepository().Create(context.Background(), db, user))
	return user
}

// CreateItem inserts a vocabulary item owned by userID
func CreateItem(t testing.TB, db *sqlx.DB, userID int64, term string) *models.VocabItem {
	t.Helper()

	item := &models.VocabItem{UserID: userID, Term: term, Translation: term + "-tr"}
	require.NoError(t, database.NewVocabItemRepository().Create(context.Background(), db, item))
	return item
}
