package tests

import (
	"errors"
	"testing"

	"cmdb_platform/cmdb/auth"
)

func TestCapabilitiesGateTheTree(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.tree("")
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("user without any capability cannot view the tree")
	}

	env.grantCapability(t, &admin, &user, "view")

	nodes, err := user.tree("")
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range nodes {
		if n.Id == "new" || n.Id == "basic_data" || n.Id == "settings" {
			t.Fatalf("view-only tree should not contain %v", n.Id)
		}
	}

	res, err := user.createLocation(map[string]interface{}{"type_id": 1})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("view-only user cannot create locations, got %v %v", res, err)
	}
}

func TestEditCapabilityImpliesView(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	env.grantCapability(t, &admin, &user, "edit")

	nodes, err := user.tree("")
	if err != nil {
		t.Fatal(err)
	}

	foundNewLocation := false
	for _, n := range nodes {
		if n.Id == "new" {
			foundNewLocation = true
		}
		if n.Id == "basic_data" || n.Id == "settings" {
			t.Fatal("edit capability does not expose basic data folders")
		}
	}
	if !foundNewLocation {
		t.Fatal("edit capability should expose the new-location action")
	}

	_, err = user.createLifecycleStatus("planned", "PLA")
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("edit capability does not cover basic data")
	}
}

func TestEditBasicDataCapability(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	env.grantCapability(t, &admin, &user, "edit_basic_data")

	nodes, err := user.tree("")
	if err != nil {
		t.Fatal(err)
	}

	foundBasicData := false
	for _, n := range nodes {
		if n.Id == "basic_data" {
			foundBasicData = true
		}
	}
	if !foundBasicData {
		t.Fatal("basic data folder missing")
	}

	res, err := user.createLifecycleStatus("planned", "PLA")
	if err != nil || !res.Success {
		t.Fatalf("basic data editor can create statuses: %v %v", res, err)
	}
}

func TestAdminAlwaysHasAllCapabilities(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	nodes, err := admin.tree("")
	if err != nil {
		t.Fatal(err)
	}

	found := map[string]bool{}
	for _, n := range nodes {
		if id, ok := n.Id.(string); ok {
			found[id] = true
		}
	}
	for _, id := range []string{"new", "cis_by_class", "basic_data", "settings"} {
		if !found[id] {
			t.Fatalf("admin root tree missing %v", id)
		}
	}
}

func TestPermissionSettingsValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.getPermissions()
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("permission settings are admin only")
	}

	err = admin.setPermissions(auth.PermissionSettings{ViewCmdbGroups: []int64{404}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("settings referencing a missing group should be rejected")
	}

	groupId, err := admin.createGroup("viewers")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.setPermissions(auth.PermissionSettings{ViewCmdbGroups: []int64{groupId}})
	if err != nil {
		t.Fatal(err)
	}

	settings, err := admin.getPermissions()
	if err != nil {
		t.Fatal(err)
	}
	if len(settings.ViewCmdbGroups) != 1 || settings.ViewCmdbGroups[0] != groupId {
		t.Fatal("stored settings wrong")
	}
}
