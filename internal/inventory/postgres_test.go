package inventory

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSource_LineItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "order_id", "category", "brands", "msrp", "all_in_cost", "item_count"}).
		AddRow("11", "O1", "Vacuums & Floorcare", "Shark, BISSELL", "200.00", "40.5", "10").
		AddRow("12", "O2", "", "", "", "bad", "3")

	mock.ExpectQuery(regexp.QuoteMeta("FROM line_items li")).WillReturnRows(rows)

	items, err := NewPostgresSource(db).LineItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "11", items[0].SourceID)
	assert.Equal(t, "O1", items[0].OrderID)
	assert.Equal(t, 200.0, items[0].MSRP.Float())
	assert.Equal(t, 40.5, items[0].AllInCost.Float())
	assert.Equal(t, 10.0, items[0].ItemCount.Int())

	assert.Equal(t, 0.0, items[1].MSRP.Float())
	assert.Equal(t, 0.0, items[1].AllInCost.Float())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM line_items li")).WillReturnError(assert.AnError)

	_, err = NewPostgresSource(db).LineItems(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
