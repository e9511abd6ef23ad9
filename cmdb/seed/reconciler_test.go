package seed

import (
	"testing"

	"cmdb_platform/cmdb/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSeedDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(schema.AllTables()...))

	return db
}

// A class row whose parent key resolves to nothing is recorded as an error
// and skipped; rows after it still insert.
func TestInsertRecordsDanglingParentAndContinues(t *testing.T) {
	db := setupSeedDb(t)

	original := CiClassRows
	CiClassRows = []CiClassRow{
		{Key: "orphan", ParentKey: "missing_parent", NameFull: "Orphan", NameAbbr: "ORP"},
		{Key: "standalone", NameFull: "Standalone", NameAbbr: "STA"},
	}
	defer func() { CiClassRows = original }()

	stats := NewReconciler(db).InsertAll(uuid.New())

	assert.Equal(t, 1, stats.Inserted[KindCiClass])
	assert.Equal(t, 0, stats.Skipped[KindCiClass])
	require.Len(t, stats.Errors[KindCiClass], 1)
	assert.Equal(t, "parent 'missing_parent' not found for 'orphan'", stats.Errors[KindCiClass][0])

	orphaned, err := schema.Exists(db, &schema.CiClass{}, "key = ?", "orphan")
	require.NoError(t, err)
	assert.False(t, orphaned)

	inserted, err := schema.Exists(db, &schema.CiClass{}, "key = ?", "standalone")
	require.NoError(t, err)
	assert.True(t, inserted)

	// The error is sticky across passes: the orphan row stays out while the
	// rest of the catalog only skips.
	stats = NewReconciler(db).InsertAll(uuid.New())
	assert.Equal(t, 0, stats.Inserted[KindCiClass])
	assert.Equal(t, 1, stats.Skipped[KindCiClass])
	require.Len(t, stats.Errors[KindCiClass], 1)
}
