package tests

import (
	"fmt"
	"testing"

	"cmdb_platform/cmdb/seed"
)

func TestSeedInsertIsIdempotent(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	stats, err := admin.seedAdd()
	if err != nil {
		t.Fatal(err)
	}

	hierarchyCount := len(seed.LocationHierarchyRows)
	statusCount := len(seed.LifecycleStatusRows)
	classCount := len(seed.CiClassRows)

	if stats.Inserted[seed.KindLocationHierarchy] != hierarchyCount {
		t.Fatalf("expected %d hierarchy rows inserted, got %d", hierarchyCount, stats.Inserted[seed.KindLocationHierarchy])
	}
	if stats.Inserted[seed.KindLifecycleStatus] != statusCount {
		t.Fatalf("expected %d status rows inserted, got %d", statusCount, stats.Inserted[seed.KindLifecycleStatus])
	}
	if stats.Inserted[seed.KindCiClass] != classCount {
		t.Fatalf("expected %d class rows inserted, got %d", classCount, stats.Inserted[seed.KindCiClass])
	}
	for kind, errs := range stats.Errors {
		if len(errs) != 0 {
			t.Fatalf("unexpected %v errors: %v", kind, errs)
		}
	}

	// A second pass only skips.
	stats, err = admin.seedAdd()
	if err != nil {
		t.Fatal(err)
	}
	for kind, n := range stats.Inserted {
		if n != 0 {
			t.Fatalf("second pass inserted %d %v rows", n, kind)
		}
	}
	if stats.Skipped[seed.KindLocationHierarchy] != hierarchyCount {
		t.Fatal("second pass should skip every hierarchy row")
	}
	if stats.Skipped[seed.KindCiClass] != classCount {
		t.Fatal("second pass should skip every class row")
	}
}

func TestSeedRemoveUnusedKeepsOccupiedRows(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.seedAdd(); err != nil {
		t.Fatal(err)
	}

	// Occupy the "building" level with a location and the "server" class
	// with a CI.
	nodes, err := admin.tree("location_hierarchy")
	if err != nil {
		t.Fatal(err)
	}
	var buildingType int64
	for _, n := range nodes {
		if n.Type == "hierarchy" && n.Text == "Bld." {
			fmt.Sscanf(n.Id.(string), "hierarchy_%d", &buildingType)
		}
	}
	if buildingType == 0 {
		t.Fatal("seeded building level not found in tree")
	}

	res, err := admin.createLocation(map[string]interface{}{"type_id": buildingType, "name_abbr": "HQ"})
	if err != nil || !res.Success {
		t.Fatalf("create location failed: %+v %v", res, err)
	}

	stats, err := admin.seedRemoveUnused()
	if err != nil {
		t.Fatal(err)
	}

	if stats.Kept[seed.KindLocationHierarchy] != 1 {
		t.Fatalf("occupied building level should be kept, got %+v", stats.Kept)
	}
	if stats.Deleted[seed.KindLocationHierarchy] != len(seed.LocationHierarchyRows)-1 {
		t.Fatalf("unused hierarchy rows should be deleted, got %+v", stats.Deleted)
	}
	if stats.Deleted[seed.KindCiClass] != len(seed.CiClassRows) {
		t.Fatalf("all classes are unused and should be deleted, got %+v", stats.Deleted)
	}
	if stats.Deleted[seed.KindLifecycleStatus] != len(seed.LifecycleStatusRows) {
		t.Fatalf("all statuses are unused and should be deleted, got %+v", stats.Deleted)
	}

	// A second removal pass only keeps the occupied row.
	stats, err = admin.seedRemoveUnused()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Kept[seed.KindLocationHierarchy] != 1 || stats.Deleted[seed.KindLocationHierarchy] != 0 {
		t.Fatalf("second removal pass wrong: %+v", stats)
	}
}

func TestSeedRequiresBasicDataCapability(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.seedAdd(); err != ErrForbidden {
		t.Fatal("seeding requires the basic data capability")
	}

	env.grantCapability(t, &admin, &user, "edit_basic_data")

	if _, err := user.seedAdd(); err != nil {
		t.Fatal(err)
	}
}
