package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var insertSQL = regexp.QuoteMeta("INSERT INTO research_turns (id, session_id, question, sources, answer, duration_ms)")

func TestLog_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	mock.ExpectExec(insertSQL).
		WithArgs(id.String(), "session-1", "latest stent recall?", pq.Array([]string{"FDA Database Results"}), "answer", int64(1500)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewLog(db).Record(context.Background(), &Turn{
		ID:        id,
		SessionID: "session-1",
		Question:  "latest stent recall?",
		Sources:   []string{"FDA Database Results"},
		Answer:    "answer",
		Duration:  1500 * time.Millisecond,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_Record_AssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(insertSQL).
		WithArgs(sqlmock.AnyArg(), "s", "q", pq.Array([]string{}), "a", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	turn := &Turn{SessionID: "s", Question: "q", Answer: "a"}
	require.NoError(t, NewLog(db).Record(context.Background(), turn))

	assert.NotEqual(t, uuid.Nil, turn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_Record_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(insertSQL).WillReturnError(errors.New("connection reset"))

	err = NewLog(db).Record(context.Background(), &Turn{SessionID: "s"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestLog_Recent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "session_id", "question", "sources", "answer", "duration_ms", "created_at"}).
		AddRow("7c9e6679-7425-40de-944b-e07fc1f90ae7", "s", "q", []byte(`{"Internal Documents","Web Search Results"}`), "a", int64(250), created)
	mock.ExpectQuery(regexp.QuoteMeta("FROM research_turns")).
		WithArgs("s", 10).
		WillReturnRows(rows)

	turns, err := NewLog(db).Recent(context.Background(), "s", 0)

	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, []string{"Internal Documents", "Web Search Results"}, turns[0].Sources)
	assert.Equal(t, 250*time.Millisecond, turns[0].Duration)
	assert.Equal(t, created, turns[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_Recent_BadID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "session_id", "question", "sources", "answer", "duration_ms", "created_at"}).
		AddRow("not-a-uuid", "s", "q", []byte(`{}`), "a", int64(1), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM research_turns")).WillReturnRows(rows)

	_, err = NewLog(db).Recent(context.Background(), "s", 5)

	assert.Error(t, err)
}
