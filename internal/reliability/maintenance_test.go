package reliability

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceService_CheckpointAll(t *testing.T) {
	dir := t.TempDir()
	alpha := newBackupDB(t, dir, "alpha", 50)
	beta := newBackupDB(t, dir, "beta", 10)

	svc := NewMaintenanceService(map[string]*sql.DB{
		"alpha": alpha.Conn(),
		"beta":  beta.Conn(),
	}, dir, zerolog.Nop())

	require.NoError(t, svc.CheckpointAll(context.Background()))

	// Data must survive the checkpoint.
	var count int
	require.NoError(t, alpha.QueryRow("SELECT COUNT(*) FROM grades").Scan(&count))
	assert.Equal(t, 50, count)
}

func TestMaintenanceService_IntegrityCheckAll(t *testing.T) {
	dir := t.TempDir()
	alpha := newBackupDB(t, dir, "alpha", 5)

	svc := NewMaintenanceService(map[string]*sql.DB{"alpha": alpha.Conn()}, dir, zerolog.Nop())
	assert.NoError(t, svc.IntegrityCheckAll(context.Background()))
}

func TestMaintenanceService_CheckDiskSpace(t *testing.T) {
	svc := NewMaintenanceService(nil, t.TempDir(), zerolog.Nop())
	assert.NoError(t, svc.CheckDiskSpace())
}
