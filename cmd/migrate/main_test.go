package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsTable(t *testing.T) {
	for _, name := range []string{"up", "down", "status", "version"} {
		assert.True(t, commands[name].needDB, name)
	}
	assert.False(t, commands["create"].needDB)
	assert.False(t, commands["validate"].needDB)
}

func TestCreateCommandWritesMigration(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	require.Error(t, commands["create"].run(ctx, nil, dir, nil))
	require.Error(t, commands["create"].run(ctx, nil, dir, []string{"Bad Name"}))
	require.NoError(t, commands["create"].run(ctx, nil, dir, []string{"add_referral_codes"}))

	matches, err := filepath.Glob(filepath.Join(dir, "*_add_referral_codes.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	body, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- +goose Down")
}

func TestVersionCommandRequiresTarget(t *testing.T) {
	err := commands["version"].run(context.Background(), nil, t.TempDir(), nil)
	require.Error(t, err)
}
