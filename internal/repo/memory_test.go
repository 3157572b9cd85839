package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient(t *testing.T) {
	t.Parallel()

	archive := datapoint.NewArchive(&datapoint.Datapoint{ID: "a", IntermediateHash: "h1"})
	m := NewMemory(DefaultRemote("test"), archive)
	ctx := context.Background()

	got, err := m.FetchArchive(ctx)
	require.NoError(t, err)
	assert.Same(t, archive, got)

	dir := filepath.Join(t.TempDir(), "clone")
	require.NoError(t, m.Clone(ctx, dir))
	assert.FileExists(t, filepath.Join(dir, "h1.json"))

	pr := PullRequest{Dir: dir, Branch: "run_1", Files: map[string][]byte{"h2.json": []byte("{}")}, Title: "t"}
	handle, err := m.OpenPR(ctx, pr, Credentials{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, 1, handle.Number)
	assert.Equal(t, "https://github.com/Proteobot/Results_test/pull/1", handle.URL)
	assert.FileExists(t, filepath.Join(dir, "h2.json"))

	_, err = m.OpenPR(ctx, pr, Credentials{Token: "tok"})
	assert.ErrorIs(t, err, util.ErrDuplicate)

	_, err = m.OpenPR(ctx, PullRequest{Dir: dir, Branch: "run_2"}, Credentials{})
	assert.True(t, util.IsKind(err, util.KindSubmission))

	require.Len(t, m.Pulls(), 1)
}

func TestMemoryFailures(t *testing.T) {
	t.Parallel()

	m := NewMemory(DefaultRemote("test"), nil)
	m.FetchErr = errors.New("offline")
	_, err := m.FetchArchive(context.Background())
	assert.EqualError(t, err, "offline")

	m.PushErr = errors.New("authentication failed")
	dir := t.TempDir()
	_, err = m.OpenPR(context.Background(), PullRequest{Dir: dir, Branch: "b", Files: map[string][]byte{"x.json": nil}}, Credentials{Token: "tok"})
	assert.True(t, util.IsKind(err, util.KindSubmission))
	_, statErr := os.Stat(filepath.Join(dir, "x.json"))
	assert.True(t, os.IsNotExist(statErr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.FetchErr = nil
	_, err = m.FetchArchive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
