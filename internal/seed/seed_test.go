package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/pkg/database"
)

func TestGenerate_IsDeterministic(t *testing.T) {
	plan := Plan{TenantID: uuid.New(), Listings: 25, Seed: 7}

	a, b := Generate(plan), Generate(plan)
	assert.Equal(t, a, b)

	plan.Seed = 8
	assert.NotEqual(t, a.Listings, Generate(plan).Listings)
}

func TestGenerate_ScopesEverythingToTenant(t *testing.T) {
	tenant := uuid.New()
	ds := Generate(Plan{TenantID: tenant, Listings: 50, Seed: 1})

	categories := make(map[uuid.UUID]domain.Category)
	for _, c := range ds.Categories {
		assert.Equal(t, tenant, c.TenantID)
		categories[c.ID] = c
	}
	tags := make(map[uuid.UUID]bool)
	for _, tg := range ds.Tags {
		assert.Equal(t, tenant, tg.TenantID)
		tags[tg.ID] = true
	}

	slugs := make(map[string]bool)
	require.Len(t, ds.Listings, 50)
	for _, row := range ds.Listings {
		assert.Equal(t, tenant, row.TenantID)
		assert.False(t, slugs[row.Slug], "duplicate slug %s", row.Slug)
		slugs[row.Slug] = true

		for _, cid := range row.CategoryIDs {
			assert.Contains(t, categories, cid)
		}
		for _, tid := range row.TagIDs {
			assert.True(t, tags[tid])
		}
		if row.HasCoordinates() {
			assert.InDelta(t, 0, *row.Latitude, 90)
			assert.InDelta(t, 0, *row.Longitude, 180)
		}
		if row.Status == domain.StatusPublished {
			assert.NotNil(t, row.PublishedAt)
		}
	}
}

func TestGenerate_CategoryHierarchy(t *testing.T) {
	ds := Generate(Plan{TenantID: uuid.New()})

	var lofts, apartments domain.Category
	for _, c := range ds.Categories {
		switch c.Slug {
		case "lofts":
			lofts = c
		case "apartments":
			apartments = c
		}
	}
	require.NotNil(t, lofts.ParentID)
	assert.Equal(t, apartments.ID, *lofts.ParentID)
	assert.Equal(t, 1, lofts.Level)
	assert.Empty(t, ds.Listings)
}

func TestGenerate_StableIDsAcrossSeeds(t *testing.T) {
	tenant := uuid.New()
	a := Generate(Plan{TenantID: tenant, Listings: 3, Seed: 1})
	b := Generate(Plan{TenantID: tenant, Listings: 3, Seed: 2})

	for i := range a.Listings {
		assert.Equal(t, a.Listings[i].ID, b.Listings[i].ID)
	}
	assert.Equal(t, a.Categories[0].ID, b.Categories[0].ID)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectDataset(mock pgxmock.PgxPoolIface, ds *Dataset) {
	for range ds.Categories {
		mock.ExpectExec("INSERT INTO categories").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for range ds.Tags {
		mock.ExpectExec("INSERT INTO tags").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for _, row := range ds.Listings {
		mock.ExpectExec("INSERT INTO listings").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("DELETE FROM reviews").WithArgs(row.ID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		for range row.CategoryIDs {
			mock.ExpectExec("INSERT INTO listing_categories").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		for range row.TagIDs {
			mock.ExpectExec("INSERT INTO listing_tags").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		for range row.Media {
			mock.ExpectExec("INSERT INTO media").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		for range row.Reviews {
			mock.ExpectExec("INSERT INTO reviews").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
	}
}

func TestWriter_Write(t *testing.T) {
	mock := newMock(t)
	ds := Generate(Plan{TenantID: uuid.New(), Listings: 4, Seed: 3})

	mock.ExpectBegin()
	expectDataset(mock, ds)
	mock.ExpectCommit()

	w := NewWriter(mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sum, err := w.Write(context.Background(), ds)

	require.NoError(t, err)
	assert.Equal(t, len(ds.Categories), sum.Categories)
	assert.Equal(t, len(ds.Tags), sum.Tags)
	assert.Equal(t, 4, sum.Listings)

	var media, reviews int
	for _, row := range ds.Listings {
		media += len(row.Media)
		reviews += len(row.Reviews)
	}
	assert.Equal(t, media, sum.Media)
	assert.Equal(t, reviews, sum.Reviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_RollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	ds := Generate(Plan{TenantID: uuid.New(), Listings: 1, Seed: 3})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO categories").WillReturnError(errors.New("relation \"categories\" does not exist"))
	mock.ExpectRollback()

	w := NewWriter(mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := w.Write(context.Background(), ds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `category "apartments"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_BeginFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	w := NewWriter(mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := w.Write(context.Background(), &Dataset{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin seed transaction")
}
