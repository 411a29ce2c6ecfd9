package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookman/portfolio-service/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db))
	return db
}

func appendEntry(t *testing.T, db *sql.DB, repo *Repository, entry *Transaction) {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.AppendTx(tx, entry))
	require.NoError(t, tx.Commit())
}

func testEntry(id, portfolioID, txType string, executedAt time.Time) *Transaction {
	return &Transaction{
		ID:          id,
		PortfolioID: portfolioID,
		AssetID:     "asset-1",
		Symbol:      "BTC",
		Type:        txType,
		Quantity:    decimal.NewFromInt(1),
		Price:       decimal.NewFromInt(40000),
		Fee:         decimal.Zero,
		ExecutedAt:  executedAt,
		CreatedAt:   executedAt,
	}
}

func TestAppendAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	appendEntry(t, db, repo, testEntry("tx-1", "p1", TypeBuy, now))

	got, err := repo.GetByID("tx-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PortfolioID)
	assert.Equal(t, TypeBuy, got.Type)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, got.ExecutedAt.Equal(now))
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.GetByID("missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetByIDTx_AbsentReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	got, err := repo.GetByIDTx(tx, "never-applied")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestList_ReverseChronological(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		appendEntry(t, db, repo, testEntry(fmt.Sprintf("tx-%d", i), "p1", TypeBuy, base.AddDate(0, 0, i)))
	}

	txs, next, err := repo.List(Filter{PortfolioID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx-2", txs[0].ID)
	assert.Equal(t, "tx-0", txs[2].ID)
}

func TestList_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	appendEntry(t, db, repo, testEntry("tx-buy", "p1", TypeBuy, base))
	appendEntry(t, db, repo, testEntry("tx-sell", "p1", TypeSell, base.AddDate(0, 0, 1)))
	appendEntry(t, db, repo, testEntry("tx-other", "p2", TypeBuy, base))

	byType, _, err := repo.List(Filter{PortfolioID: "p1", Type: TypeSell})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "tx-sell", byType[0].ID)

	start := base.AddDate(0, 0, 1)
	byDate, _, err := repo.List(Filter{PortfolioID: "p1", StartDate: &start})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "tx-sell", byDate[0].ID)
}

func TestList_Pagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		appendEntry(t, db, repo, testEntry(fmt.Sprintf("tx-%d", i), "p1", TypeBuy, base.AddDate(0, 0, i)))
	}

	page1, token, err := repo.List(Filter{PortfolioID: "p1", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, token)

	page2, token2, err := repo.List(Filter{PortfolioID: "p1", PageSize: 2, PageToken: token})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEmpty(t, token2)

	page3, token3, err := repo.List(Filter{PortfolioID: "p1", PageSize: 2, PageToken: token2})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, token3)

	seen := map[string]bool{}
	for _, page := range [][]Transaction{page1, page2, page3} {
		for _, tx := range page {
			assert.False(t, seen[tx.ID], "duplicate entry %s across pages", tx.ID)
			seen[tx.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestList_InvalidPageToken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, _, err := repo.List(Filter{PortfolioID: "p1", PageToken: "garbage"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestListForReplay_AscendingWithCutoff(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		appendEntry(t, db, repo, testEntry(fmt.Sprintf("tx-%d", i), "p1", TypeBuy, base.AddDate(0, 0, i)))
	}

	txs, err := repo.ListForReplay("p1", base.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx-0", txs[0].ID)
	assert.Equal(t, "tx-2", txs[2].ID)
}

func TestDirectionAndQuantityDelta(t *testing.T) {
	increases := []string{TypeBuy, TypeTransferIn, TypeReward, TypeUnstake}
	decreases := []string{TypeSell, TypeTransferOut, TypeStake, TypeFee}

	qty := decimal.NewFromFloat(2.5)
	for _, txType := range increases {
		tx := &Transaction{Type: txType, Quantity: qty}
		assert.Equal(t, 1, tx.Direction(), txType)
		assert.True(t, tx.QuantityDelta().Equal(qty), txType)
	}
	for _, txType := range decreases {
		tx := &Transaction{Type: txType, Quantity: qty}
		assert.Equal(t, -1, tx.Direction(), txType)
		assert.True(t, tx.QuantityDelta().Equal(qty.Neg()), txType)
	}
}

func TestValidate(t *testing.T) {
	valid := testEntry("tx-1", "p1", TypeBuy, time.Now())
	assert.NoError(t, valid.Validate())

	missing := testEntry("tx-2", "", TypeBuy, time.Now())
	assert.True(t, errors.Is(missing.Validate(), domain.ErrValidation))

	badType := testEntry("tx-3", "p1", "short", time.Now())
	assert.True(t, errors.Is(badType.Validate(), domain.ErrValidation))

	zeroQty := testEntry("tx-4", "p1", TypeBuy, time.Now())
	zeroQty.Quantity = decimal.Zero
	assert.True(t, errors.Is(zeroQty.Validate(), domain.ErrValidation))

	negPrice := testEntry("tx-5", "p1", TypeBuy, time.Now())
	negPrice.Price = decimal.NewFromInt(-1)
	assert.True(t, errors.Is(negPrice.Validate(), domain.ErrValidation))
}
