package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogKeysAreUnique(t *testing.T) {
	keys := map[string]bool{}
	levels := map[int]bool{}
	for _, row := range LocationHierarchyRows {
		assert.False(t, keys[row.Key], "duplicate hierarchy key %v", row.Key)
		assert.False(t, levels[row.Level], "duplicate hierarchy level %d", row.Level)
		keys[row.Key] = true
		levels[row.Level] = true
	}

	keys = map[string]bool{}
	for _, row := range LifecycleStatusRows {
		assert.False(t, keys[row.Key], "duplicate status key %v", row.Key)
		keys[row.Key] = true
	}

	keys = map[string]bool{}
	for _, row := range CiClassRows {
		assert.False(t, keys[row.Key], "duplicate class key %v", row.Key)
		keys[row.Key] = true
	}
}

func TestCatalogParentsPrecedeChildren(t *testing.T) {
	seen := map[string]bool{}
	for _, row := range CiClassRows {
		if row.ParentKey != "" {
			assert.True(t, seen[row.ParentKey], "parent %v of %v must be listed first", row.ParentKey, row.Key)
		}
		seen[row.Key] = true
	}
}

func TestDeletionOrderReversesInsertionOrder(t *testing.T) {
	insertion := InsertionOrder()
	deletion := DeletionOrder()

	assert.Equal(t, len(insertion), len(deletion))
	for i, kind := range insertion {
		assert.Equal(t, kind, deletion[len(deletion)-1-i])
	}
}
