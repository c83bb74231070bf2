package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orbiter/internal/common"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := common.DefaultConfig()
	cfg.Cache.Root = t.TempDir()

	svc, err := NewService(cfg, arbor.NewLogger())
	require.NoError(t, err)
	return svc
}

func writeArtifact(t *testing.T, svc *Service, rel, content string) {
	t.Helper()
	full := filepath.Join(svc.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestListAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	writeArtifact(t, svc, "order-1/scene-sr.tar.gz", "data")
	writeArtifact(t, svc, "order-1/scene-sr.tar.gz.md5", "checksum")
	writeArtifact(t, svc, "order-2/other.tar.gz", "data")

	paths, err := svc.List(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, filepath.Join("order-1", "scene-sr.tar.gz"))

	require.NoError(t, svc.Delete(ctx, "order-1"))

	paths, err = svc.List(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, paths)

	// Other orders untouched
	paths, err = svc.List(ctx, "order-2")
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestDeleteMissingOrderSucceeds(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.Delete(context.Background(), "never-existed"))
}

func TestVerifyArtifact(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	writeArtifact(t, svc, "order-1/scene-sr.tar.gz", "payload")

	size, err := svc.VerifyArtifact(ctx, "order-1/scene-sr.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), size)

	_, err = svc.VerifyArtifact(ctx, "order-1/missing.tar.gz")
	assert.Error(t, err)

	writeArtifact(t, svc, "order-1/empty.tar.gz", "")
	_, err = svc.VerifyArtifact(ctx, "order-1/empty.tar.gz")
	assert.Error(t, err, "empty artifact reads as missing")

	_, err = svc.VerifyArtifact(ctx, "order-1")
	assert.Error(t, err, "directory is not an artifact")
}

func TestPathEscapeRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.Delete(ctx, "../outside")
	assert.Error(t, err)

	_, err = svc.VerifyArtifact(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestCapacity(t *testing.T) {
	svc := newTestService(t)

	snapshot, err := svc.Capacity(context.Background())
	require.NoError(t, err)
	assert.Greater(t, snapshot.Capacity, int64(0))
	assert.GreaterOrEqual(t, snapshot.PercentFree, 0.0)
	assert.LessOrEqual(t, snapshot.PercentFree, 100.0)
}
