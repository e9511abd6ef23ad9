package tests

import (
	"fmt"
	"strings"
	"testing"
)

func TestHierarchyLevelValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.createEntity("/hierarchy_levels/create", map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 2 {
		t.Fatalf("missing key and level should both be reported: %+v", res)
	}

	res, err = admin.createHierarchyLevel("building", 200, "Bld.", "Building")
	if err != nil || !res.Success {
		t.Fatalf("create failed: %+v %v", res, err)
	}
	if res.Notice != "Hierarchy level was successfully created." {
		t.Fatalf("notice wrong: %v", res.Notice)
	}

	res, err = admin.createHierarchyLevel("building", 300, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 || res.Errors[0] != "Key has already been taken" {
		t.Fatalf("duplicate key should be rejected: %+v", res)
	}

	res, err = admin.createHierarchyLevel("tower", 200, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 || res.Errors[0] != "Level has already been taken" {
		t.Fatalf("duplicate level should be rejected: %+v", res)
	}

	res, err = admin.createEntity("/hierarchy_levels/create", map[string]interface{}{
		"key": strings.Repeat("x", 51), "level": 400,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Errors[0] != "Key is too long (maximum is 50 characters)" {
		t.Fatalf("overlong key should be rejected: %+v", res)
	}
}

func TestHierarchyLevelUpdateAndDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.createHierarchyLevel("building", 200, "Bld.", "Building")
	if err != nil || !res.Success {
		t.Fatalf("create failed: %+v %v", res, err)
	}
	levelId := res.Id

	// Updating a record against its own key does not trip uniqueness.
	res, err = admin.updateEntity(fmt.Sprintf("/hierarchy_levels/%d", levelId), map[string]interface{}{
		"key": "building", "level": 200, "name_abbr": "BLD",
	})
	if err != nil || !res.Success {
		t.Fatalf("update failed: %+v %v", res, err)
	}

	res, err = admin.createLocation(map[string]interface{}{"type_id": levelId, "name_abbr": "HQ"})
	if err != nil || !res.Success {
		t.Fatalf("create location failed: %+v %v", res, err)
	}
	locationId := res.Id

	res, err = admin.deleteEntity(fmt.Sprintf("/hierarchy_levels/%d", levelId))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("occupied level delete should fail with errors: %+v", res)
	}

	res, err = admin.deleteEntity(fmt.Sprintf("/locations/%d", locationId))
	if err != nil || !res.Success {
		t.Fatalf("delete location failed: %+v %v", res, err)
	}

	res, err = admin.deleteEntity(fmt.Sprintf("/hierarchy_levels/%d", levelId))
	if err != nil || !res.Success {
		t.Fatalf("delete level failed: %+v %v", res, err)
	}
}

func TestLocationNaturalKeyUniqueness(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.createHierarchyLevel("room", 220, "Rm.", "Room")
	if err != nil || !res.Success {
		t.Fatalf("create level failed: %+v %v", res, err)
	}
	roomType := res.Id

	res, err = admin.createLocation(map[string]interface{}{"type_id": roomType, "key": "r101"})
	if err != nil || !res.Success {
		t.Fatalf("create location failed: %+v %v", res, err)
	}
	room1 := res.Id

	// Same key, same type, same (absent) parents.
	res, err = admin.createLocation(map[string]interface{}{"type_id": roomType, "key": "r101"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 || res.Errors[0] != "Key has already been taken for this type and parents" {
		t.Fatalf("duplicate natural key should be rejected: %+v", res)
	}

	// Same key under a different parent is a different natural key.
	res, err = admin.createLocation(map[string]interface{}{
		"type_id": roomType, "key": "r101", "parent1_id": room1,
	})
	if err != nil || !res.Success {
		t.Fatalf("same key under different parent should be allowed: %+v %v", res, err)
	}

	// Keyless locations never collide.
	for i := 0; i < 2; i++ {
		res, err = admin.createLocation(map[string]interface{}{"type_id": roomType})
		if err != nil || !res.Success {
			t.Fatalf("keyless location create failed: %+v %v", res, err)
		}
	}

	res, err = admin.deleteEntity(fmt.Sprintf("/locations/%d", room1))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("location with children cannot be deleted")
	}
}

func TestCiClassDeleteConflict(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.createCiClass(map[string]interface{}{"key": "server"})
	if err != nil || !res.Success {
		t.Fatalf("create class failed: %+v %v", res, err)
	}
	serverClass := res.Id

	res, err = admin.createCiClass(map[string]interface{}{"key": "web", "subclass_of_id": serverClass})
	if err != nil || !res.Success {
		t.Fatalf("create subclass failed: %+v %v", res, err)
	}
	webClass := res.Id

	// A class may not become its own subclass.
	res, err = admin.updateEntity(fmt.Sprintf("/ci_classes/%d", serverClass), map[string]interface{}{
		"key": "server", "subclass_of_id": serverClass,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("class cannot be its own subclass")
	}

	// Occupied class deletion reports a single conflict string, not an
	// errors array.
	res, err = admin.deleteEntity(fmt.Sprintf("/ci_classes/%d", serverClass))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error == "" || len(res.Errors) != 0 {
		t.Fatalf("occupied class delete should report a single error: %+v", res)
	}

	res, err = admin.createCi(map[string]interface{}{"ci_class_id": webClass, "name_abbr": "WEB01"})
	if err != nil || !res.Success {
		t.Fatalf("create ci failed: %+v %v", res, err)
	}

	res, err = admin.deleteEntity(fmt.Sprintf("/ci_classes/%d", webClass))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("class with CIs cannot be deleted: %+v", res)
	}
}

func TestLifecycleStatusDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.createLifecycleStatus("active", "ACT")
	if err != nil || !res.Success {
		t.Fatalf("create status failed: %+v %v", res, err)
	}
	statusId := res.Id

	res, err = admin.createCiClass(map[string]interface{}{"key": "server"})
	if err != nil || !res.Success {
		t.Fatalf("create class failed: %+v %v", res, err)
	}

	res, err = admin.createCi(map[string]interface{}{"ci_class_id": res.Id, "status_id": statusId})
	if err != nil || !res.Success {
		t.Fatalf("create ci failed: %+v %v", res, err)
	}
	ciId := res.Id

	res, err = admin.deleteEntity(fmt.Sprintf("/lifecycle_statuses/%d", statusId))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("status in use cannot be deleted: %+v", res)
	}

	res, err = admin.deleteEntity(fmt.Sprintf("/cis/%d", ciId))
	if err != nil || !res.Success {
		t.Fatalf("delete ci failed: %+v %v", res, err)
	}

	res, err = admin.deleteEntity(fmt.Sprintf("/lifecycle_statuses/%d", statusId))
	if err != nil || !res.Success {
		t.Fatalf("delete status failed: %+v %v", res, err)
	}
}

func TestExternalSystemOwnership(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	adminInfo, err := admin.userInfo()
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.createExternalSystem(map[string]interface{}{
		"responsible_user_id": adminInfo.Id, "name_abbr": "DCIM",
	})
	if err != nil || !res.Success {
		t.Fatalf("create external system failed: %+v %v", res, err)
	}

	res, err = admin.createExternalSystem(map[string]interface{}{
		"responsible_user_id": adminInfo.Id, "name_abbr": "OTHER",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 || res.Errors[0] != "Responsible user already owns an external system" {
		t.Fatalf("second system for the same user should be rejected: %+v", res)
	}

	res, err = admin.createExternalSystem(map[string]interface{}{"name_abbr": "ORPHAN"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 || res.Errors[0] != "Responsible user cannot be blank" {
		t.Fatalf("missing responsible user should be rejected: %+v", res)
	}
}
