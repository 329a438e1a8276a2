package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLiveGateway stubs a reachable durable store for one collection.
func newLiveGateway(t *testing.T, collection string) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + collection).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM " + collection).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	g, err := NewGateway(context.Background(), sqlx.NewDb(db, "sqlmock"), []string{collection})
	require.NoError(t, err)
	require.True(t, g.IsLive(collection))
	return g, mock
}

func TestGateway_GetFailureDemotesAndUsesMirror(t *testing.T) {
	g, mock := newLiveGateway(t, "policy_drafts")
	ctx := context.Background()

	// the write survives the outage in the mirror
	mock.ExpectExec("INSERT INTO policy_drafts").
		WillReturnError(fmt.Errorf("connection reset"))
	require.NoError(t, g.Upsert(ctx, "policy_drafts", "sess-1", map[string]any{
		"sessionId": "sess-1",
		"stage":     "pricing",
	}))
	require.False(t, g.IsLive("policy_drafts"))

	doc, ok := g.Get(ctx, "policy_drafts", "sess-1")
	require.True(t, ok)
	assert.Equal(t, "pricing", doc["stage"])
}

func TestGateway_GetErrorFallsThroughToMirroredDocument(t *testing.T) {
	g, mock := newLiveGateway(t, "policy_drafts")
	ctx := context.Background()

	// seed the mirror directly, as a pre-outage write would have
	g.mirror.Upsert("policy_drafts", "sess-1", map[string]any{
		"sessionId": "sess-1",
		"stage":     "coverage_design",
	})

	mock.ExpectQuery("SELECT doc FROM policy_drafts").
		WithArgs("sess-1").
		WillReturnError(fmt.Errorf("connection reset"))

	// a transient read failure is not "not found": the collection
	// demotes and the mirrored checkpoint still answers
	doc, ok := g.Get(ctx, "policy_drafts", "sess-1")
	require.True(t, ok)
	assert.Equal(t, "coverage_design", doc["stage"])
	assert.False(t, g.IsLive("policy_drafts"))
}

func TestGateway_GetAbsentRowStaysLive(t *testing.T) {
	g, mock := newLiveGateway(t, "policy_drafts")
	ctx := context.Background()

	mock.ExpectQuery("SELECT doc FROM policy_drafts").
		WithArgs("sess-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, ok := g.Get(ctx, "policy_drafts", "sess-unknown")
	assert.False(t, ok)
	assert.True(t, g.IsLive("policy_drafts"))
}

func TestGateway_AdoptPromotesAndReplaysMirror(t *testing.T) {
	g := newMirroredGateway(t, "policy_drafts")
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "policy_drafts", "sess-1", map[string]any{
		"sessionId": "sess-1",
		"stage":     "pricing",
	}))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS policy_drafts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM policy_drafts").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec("INSERT INTO policy_drafts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	g.Adopt(ctx, sqlx.NewDb(db, "sqlmock"))

	assert.True(t, g.IsLive("policy_drafts"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_AdoptKeepsUnreachableCollectionMirrored(t *testing.T) {
	g := newMirroredGateway(t, "policy_drafts")
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS policy_drafts").
		WillReturnError(fmt.Errorf("still down"))

	g.Adopt(ctx, sqlx.NewDb(db, "sqlmock"))
	assert.False(t, g.IsLive("policy_drafts"))
}
