package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seedRepo struct {
	existing map[string]bool
	failOn   string
}

func (r *seedRepo) ListActive(context.Context) ([]model.DestinationGroup, error) { return nil, nil }
func (r *seedRepo) List(context.Context) ([]model.DestinationGroup, error)       { return nil, nil }

func (r *seedRepo) Upsert(_ context.Context, groupID, _ string, _ time.Time) (bool, error) {
	if groupID == r.failOn {
		return false, errors.New("db down")
	}
	if r.existing[groupID] {
		return false, nil
	}
	r.existing[groupID] = true
	return true, nil
}

func (r *seedRepo) SetActive(context.Context, string, bool, time.Time) error { return nil }
func (r *seedRepo) Delete(context.Context, string) error                     { return nil }

func TestSeedGroupsCountsNewRows(t *testing.T) {
	repo := &seedRepo{existing: map[string]bool{"a@g.us": true}}

	n, err := seedGroups(context.Background(), repo, []string{"a@g.us", "b@g.us", "c@g.us"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = seedGroups(context.Background(), repo, []string{"a@g.us", "b@g.us"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeedGroupsStopsOnError(t *testing.T) {
	repo := &seedRepo{existing: map[string]bool{}, failOn: "b@g.us"}

	n, err := seedGroups(context.Background(), repo, []string{"a@g.us", "b@g.us", "c@g.us"}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b@g.us")
	assert.Equal(t, 1, n)
	assert.False(t, repo.existing["c@g.us"])
}
