package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/domain"
)

func TestNearest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"text", "title", "source", "score"}).
		AddRow("reset it", "Password", "kb/pw", 0.93).
		AddRow("orphan", nil, nil, 0.41)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT text, title, source, 1 - (embedding <=> $1::vector) AS score FROM kb.chunks ORDER BY embedding <=> $1::vector LIMIT $2`)).
		WithArgs("[0.5,-1,2]", 4).
		WillReturnRows(rows)

	s, err := New(db, "kb.chunks")
	require.NoError(t, err)
	matches, err := s.Nearest(context.Background(), []float64{0.5, -1, 2}, 4)
	require.NoError(t, err)

	assert.Equal(t, []domain.Match{
		{Text: "reset it", Title: "Password", SourceID: "kb/pw", Score: 0.93},
		{Text: "orphan", Score: 0.41},
	}, matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNearest_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("relation does not exist")
	mock.ExpectQuery("SELECT text").WillReturnError(boom)

	s, err := New(db, "")
	require.NoError(t, err)
	_, err = s.Nearest(context.Background(), []float64{1}, 2)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_RejectsBadTable(t *testing.T) {
	_, err := New(nil, "chunks WHERE 1=1")
	assert.Error(t, err)
}

func TestNearest_InvalidLimit(t *testing.T) {
	s, err := New(nil, "")
	require.NoError(t, err)
	_, err = s.Nearest(context.Background(), []float64{1}, -1)
	assert.Error(t, err)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[1,0.25,-3e-07]", vectorLiteral([]float64{1, 0.25, -3e-7}))
}
