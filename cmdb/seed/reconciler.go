package seed

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cmdb_platform/cmdb/schema"
	"cmdb_platform/utils/logging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InsertStats reports one insertion pass, keyed by catalog kind.
type InsertStats struct {
	Inserted map[Kind]int      `json:"inserted"`
	Skipped  map[Kind]int      `json:"skipped"`
	Errors   map[Kind][]string `json:"errors"`
}

// RemoveStats reports one removal pass, keyed by catalog kind.
type RemoveStats struct {
	Deleted map[Kind]int      `json:"deleted"`
	Kept    map[Kind]int      `json:"kept"`
	Errors  map[Kind][]string `json:"errors"`
}

// Reconciler applies the seed catalog to the store. Each row is a separate
// check-then-act step; a whole pass is deliberately not one transaction, the
// store's uniqueness and foreign-key constraints backstop races and surface
// as ordinary per-row errors.
type Reconciler struct {
	db *gorm.DB
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// InsertAll inserts every catalog row whose natural key is not yet present,
// kind by kind in insertion order. Row failures are recorded and never abort
// the pass. Running it twice yields only skips the second time.
func (r *Reconciler) InsertAll(actor uuid.UUID) InsertStats {
	stats := InsertStats{
		Inserted: make(map[Kind]int),
		Skipped:  make(map[Kind]int),
		Errors:   make(map[Kind][]string),
	}
	now := time.Now().UTC()

	for _, kind := range InsertionOrder() {
		stats.Inserted[kind] = 0
		stats.Skipped[kind] = 0
		stats.Errors[kind] = []string{}

		switch kind {
		case KindLocationHierarchy:
			r.insertHierarchyLevels(actor, now, &stats)
		case KindLifecycleStatus:
			r.insertLifecycleStatuses(actor, now, &stats)
		case KindCiClass:
			r.insertCiClasses(actor, now, &stats)
		}

		slog.Info("seed insertion pass finished", "code", logging.SEED_INSERT, "kind", kind,
			"inserted", stats.Inserted[kind], "skipped", stats.Skipped[kind], "errors", len(stats.Errors[kind]))
	}

	return stats
}

func (r *Reconciler) insertHierarchyLevels(actor uuid.UUID, now time.Time, stats *InsertStats) {
	for _, row := range LocationHierarchyRows {
		exists, err := schema.Exists(r.db, &schema.LocationHierarchy{}, "key = ?", row.Key)
		if err != nil {
			stats.Errors[KindLocationHierarchy] = append(stats.Errors[KindLocationHierarchy], rowError(row.Key, err))
			continue
		}
		if exists {
			stats.Skipped[KindLocationHierarchy]++
			continue
		}

		level := schema.LocationHierarchy{
			Key:      row.Key,
			Level:    row.Level,
			NameFull: row.NameFull,
			NameAbbr: row.NameAbbr,
			Comment:  row.Comment,
		}
		level.Touch(actor, now)

		if result := r.db.Create(&level); result.Error != nil {
			stats.Errors[KindLocationHierarchy] = append(stats.Errors[KindLocationHierarchy], rowError(row.Key, result.Error))
			continue
		}
		stats.Inserted[KindLocationHierarchy]++
	}
}

func (r *Reconciler) insertLifecycleStatuses(actor uuid.UUID, now time.Time, stats *InsertStats) {
	for _, row := range LifecycleStatusRows {
		exists, err := schema.Exists(r.db, &schema.LifecycleStatus{}, "key = ?", row.Key)
		if err != nil {
			stats.Errors[KindLifecycleStatus] = append(stats.Errors[KindLifecycleStatus], rowError(row.Key, err))
			continue
		}
		if exists {
			stats.Skipped[KindLifecycleStatus]++
			continue
		}

		status := schema.LifecycleStatus{
			Key:      row.Key,
			NameFull: row.NameFull,
			NameAbbr: row.NameAbbr,
			Comment:  row.Comment,
		}
		status.Touch(actor, now)

		if result := r.db.Create(&status); result.Error != nil {
			stats.Errors[KindLifecycleStatus] = append(stats.Errors[KindLifecycleStatus], rowError(row.Key, result.Error))
			continue
		}
		stats.Inserted[KindLifecycleStatus]++
	}
}

// insertCiClasses resolves each row's ParentKey to the already inserted
// parent's id. A missing parent is a per-row error, the class is not inserted
// with a dangling pointer and the pass continues.
func (r *Reconciler) insertCiClasses(actor uuid.UUID, now time.Time, stats *InsertStats) {
	for _, row := range CiClassRows {
		exists, err := schema.Exists(r.db, &schema.CiClass{}, "key = ?", row.Key)
		if err != nil {
			stats.Errors[KindCiClass] = append(stats.Errors[KindCiClass], rowError(row.Key, err))
			continue
		}
		if exists {
			stats.Skipped[KindCiClass]++
			continue
		}

		ciClass := schema.CiClass{
			Key:      row.Key,
			Sort:     row.Sort,
			NameFull: row.NameFull,
			NameAbbr: row.NameAbbr,
			Comment:  row.Comment,
		}

		if row.ParentKey != "" {
			var parent schema.CiClass
			result := r.db.First(&parent, "key = ?", row.ParentKey)
			if result.Error != nil {
				if errors.Is(result.Error, gorm.ErrRecordNotFound) {
					msg := fmt.Sprintf("parent '%v' not found for '%v'", row.ParentKey, row.Key)
					stats.Errors[KindCiClass] = append(stats.Errors[KindCiClass], msg)
				} else {
					slog.Error("sql error resolving parent class", "key", row.ParentKey, "error", result.Error)
					stats.Errors[KindCiClass] = append(stats.Errors[KindCiClass], rowError(row.Key, schema.ErrDbAccessFailed))
				}
				continue
			}
			ciClass.SubclassOfId = &parent.Id
		}

		ciClass.Touch(actor, now)

		if result := r.db.Create(&ciClass); result.Error != nil {
			stats.Errors[KindCiClass] = append(stats.Errors[KindCiClass], rowError(row.Key, result.Error))
			continue
		}
		stats.Inserted[KindCiClass]++
	}
}

// RemoveUnused deletes catalog rows no dependent references anymore, kind by
// kind in deletion order. CI class keys are walked in reverse listing order
// so children go before parents; rows already absent are skipped silently.
func (r *Reconciler) RemoveUnused() RemoveStats {
	stats := RemoveStats{
		Deleted: make(map[Kind]int),
		Kept:    make(map[Kind]int),
		Errors:  make(map[Kind][]string),
	}

	for _, kind := range DeletionOrder() {
		stats.Deleted[kind] = 0
		stats.Kept[kind] = 0
		stats.Errors[kind] = []string{}

		for _, key := range deletionKeys(kind) {
			r.removeIfUnused(kind, key, &stats)
		}

		slog.Info("seed removal pass finished", "code", logging.SEED_REMOVE, "kind", kind,
			"deleted", stats.Deleted[kind], "kept", stats.Kept[kind], "errors", len(stats.Errors[kind]))
	}

	return stats
}

func deletionKeys(kind Kind) []string {
	switch kind {
	case KindLocationHierarchy:
		keys := make([]string, 0, len(LocationHierarchyRows))
		for _, row := range LocationHierarchyRows {
			keys = append(keys, row.Key)
		}
		return keys
	case KindLifecycleStatus:
		keys := make([]string, 0, len(LifecycleStatusRows))
		for _, row := range LifecycleStatusRows {
			keys = append(keys, row.Key)
		}
		return keys
	case KindCiClass:
		keys := make([]string, 0, len(CiClassRows))
		for i := len(CiClassRows) - 1; i >= 0; i-- {
			keys = append(keys, CiClassRows[i].Key)
		}
		return keys
	default:
		return nil
	}
}

func (r *Reconciler) removeIfUnused(kind Kind, key string, stats *RemoveStats) {
	var record interface {
		unused(db *gorm.DB) (bool, error)
	}

	switch kind {
	case KindLocationHierarchy:
		var level schema.LocationHierarchy
		result := r.db.First(&level, "key = ?", key)
		if result.Error != nil {
			r.recordLookup(kind, key, result.Error, stats)
			return
		}
		record = hierarchyRecord{level}
	case KindLifecycleStatus:
		var status schema.LifecycleStatus
		result := r.db.First(&status, "key = ?", key)
		if result.Error != nil {
			r.recordLookup(kind, key, result.Error, stats)
			return
		}
		record = statusRecord{status}
	case KindCiClass:
		var ciClass schema.CiClass
		result := r.db.First(&ciClass, "key = ?", key)
		if result.Error != nil {
			r.recordLookup(kind, key, result.Error, stats)
			return
		}
		record = classRecord{ciClass}
	default:
		return
	}

	unused, err := record.unused(r.db)
	if err != nil {
		stats.Errors[kind] = append(stats.Errors[kind], rowError(key, err))
		stats.Kept[kind]++
		return
	}
	if !unused {
		stats.Kept[kind]++
		return
	}

	if err := r.deleteRecord(kind, record); err != nil {
		stats.Errors[kind] = append(stats.Errors[kind], rowError(key, err))
		stats.Kept[kind]++
		return
	}
	stats.Deleted[kind]++
}

// recordLookup treats a missing row as already reconciled, only real store
// failures count as errors.
func (r *Reconciler) recordLookup(kind Kind, key string, err error, stats *RemoveStats) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	slog.Error("sql error looking up seed row", "kind", kind, "key", key, "error", err)
	stats.Errors[kind] = append(stats.Errors[kind], rowError(key, schema.ErrDbAccessFailed))
}

func (r *Reconciler) deleteRecord(kind Kind, record interface{}) error {
	var result *gorm.DB
	switch rec := record.(type) {
	case hierarchyRecord:
		result = r.db.Delete(&schema.LocationHierarchy{}, "id = ?", rec.Id)
	case statusRecord:
		result = r.db.Delete(&schema.LifecycleStatus{}, "id = ?", rec.Id)
	case classRecord:
		result = r.db.Delete(&schema.CiClass{}, "id = ?", rec.Id)
	default:
		return fmt.Errorf("unknown seed kind %v", kind)
	}
	if result.Error != nil {
		slog.Error("sql error deleting seed row", "kind", kind, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

type hierarchyRecord struct{ schema.LocationHierarchy }

func (h hierarchyRecord) unused(db *gorm.DB) (bool, error) {
	used, err := schema.HierarchyHasLocations(h.Id, db)
	return !used, err
}

type statusRecord struct{ schema.LifecycleStatus }

func (s statusRecord) unused(db *gorm.DB) (bool, error) {
	used, err := schema.StatusHasCis(s.Id, db)
	return !used, err
}

type classRecord struct{ schema.CiClass }

func (c classRecord) unused(db *gorm.DB) (bool, error) {
	hasCis, err := schema.CiClassHasCis(c.Id, db)
	if err != nil || hasCis {
		return false, err
	}
	hasSubclasses, err := schema.CiClassHasSubclasses(c.Id, db)
	if err != nil {
		return false, err
	}
	return !hasSubclasses, nil
}

func rowError(key string, err error) string {
	return fmt.Sprintf("%v: %v", key, err)
}
