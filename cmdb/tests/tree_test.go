package tests

import (
	"fmt"
	"testing"

	"cmdb_platform/cmdb/tree"
)

// buildFixture creates a small topology: a building containing a floor, a
// server class with a subclass, and one CI on the floor.
type fixture struct {
	buildingType int64
	floorType    int64
	building     int64
	floor        int64
	serverClass  int64
	webClass     int64
	status       int64
	ci           int64
}

func buildFixture(t *testing.T, admin *client) fixture {
	var f fixture

	res, err := admin.createHierarchyLevel("building", 200, "Bld.", "Building")
	if err != nil || !res.Success {
		t.Fatalf("create building level: %v %v", res, err)
	}
	f.buildingType = res.Id

	res, err = admin.createHierarchyLevel("floor", 210, "Flr.", "Floor")
	if err != nil || !res.Success {
		t.Fatalf("create floor level: %v %v", res, err)
	}
	f.floorType = res.Id

	res, err = admin.createLocation(map[string]interface{}{
		"type_id": f.buildingType, "name_abbr": "HQ", "name_full": "Headquarters",
	})
	if err != nil || !res.Success {
		t.Fatalf("create building: %v %v", res, err)
	}
	f.building = res.Id

	res, err = admin.createLocation(map[string]interface{}{
		"type_id": f.floorType, "name_abbr": "F1", "parent1_id": f.building,
	})
	if err != nil || !res.Success {
		t.Fatalf("create floor: %v %v", res, err)
	}
	f.floor = res.Id

	res, err = admin.createCiClass(map[string]interface{}{
		"key": "server", "sort": 10, "name_abbr": "SRV", "name_full": "Server",
	})
	if err != nil || !res.Success {
		t.Fatalf("create server class: %v %v", res, err)
	}
	f.serverClass = res.Id

	res, err = admin.createCiClass(map[string]interface{}{
		"key": "web_server", "sort": 10, "name_abbr": "WEB", "subclass_of_id": f.serverClass,
	})
	if err != nil || !res.Success {
		t.Fatalf("create web class: %v %v", res, err)
	}
	f.webClass = res.Id

	res, err = admin.createLifecycleStatus("active", "ACT")
	if err != nil || !res.Success {
		t.Fatalf("create status: %v %v", res, err)
	}
	f.status = res.Id

	res, err = admin.createCi(map[string]interface{}{
		"ci_class_id": f.webClass, "location_id": f.floor, "status_id": f.status,
		"name_abbr": "WEB01",
	})
	if err != nil || !res.Success {
		t.Fatalf("create ci: %v %v", res, err)
	}
	f.ci = res.Id

	return f
}

func findNode(nodes []tree.Node, id interface{}) *tree.Node {
	for i := range nodes {
		// Numeric json ids decode as float64.
		if intId, ok := id.(int64); ok {
			if num, ok := nodes[i].Id.(float64); ok && int64(num) == intId {
				return &nodes[i]
			}
			continue
		}
		if nodes[i].Id == id {
			return &nodes[i]
		}
	}
	return nil
}

func TestTreeRootAndLocationExpansion(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	f := buildFixture(t, &admin)

	nodes, err := admin.tree("")
	if err != nil {
		t.Fatal(err)
	}

	building := findNode(nodes, f.building)
	if building == nil {
		t.Fatal("root level should contain the building")
	}
	if building.Text != "Bld.: HQ" || !building.Children || building.Type != "location" {
		t.Fatalf("building node wrong: %+v", building)
	}
	if building.Title != "Headquarters" {
		t.Fatal("abbr and distinct full name should produce a title")
	}
	if findNode(nodes, f.floor) != nil {
		t.Fatal("non-root locations do not appear at the root level")
	}

	nodes, err = admin.tree(fmt.Sprintf("%d", f.building))
	if err != nil {
		t.Fatal(err)
	}
	floor := findNode(nodes, f.floor)
	if floor == nil {
		t.Fatal("expanding the building should yield the floor")
	}
	if floor.Title != "" {
		t.Fatal("node without a full name has no title")
	}

	nodes, err = admin.tree(fmt.Sprintf("%d", f.floor))
	if err != nil {
		t.Fatal(err)
	}
	cisFolder := findNode(nodes, fmt.Sprintf("location_cis_%d", f.floor))
	if cisFolder == nil {
		t.Fatal("floor with CIs should have a CIs folder")
	}

	nodes, err = admin.tree(fmt.Sprintf("location_cis_%d", f.floor))
	if err != nil {
		t.Fatal(err)
	}
	if findNode(nodes, f.ci) == nil {
		t.Fatal("CIs folder should list the CI")
	}
}

func TestTreeBasicDataFolders(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	f := buildFixture(t, &admin)

	nodes, err := admin.tree("basic_data")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 4 {
		t.Fatalf("expected 4 basic data folders, got %d", len(nodes))
	}

	nodes, err = admin.tree("location_hierarchy")
	if err != nil {
		t.Fatal(err)
	}
	// Action node first, then levels ordered by level value.
	if nodes[0].Type != "new_hierarchy" {
		t.Fatal("hierarchy folder should start with the new action")
	}
	if nodes[1].Id != fmt.Sprintf("hierarchy_%d", f.buildingType) || nodes[2].Id != fmt.Sprintf("hierarchy_%d", f.floorType) {
		t.Fatal("hierarchy levels should be ordered by level")
	}

	nodes, err = admin.tree("ci_classes")
	if err != nil {
		t.Fatal(err)
	}
	server := findNode(nodes, fmt.Sprintf("ci_class_%d", f.serverClass))
	if server == nil {
		t.Fatal("root classes should appear under ci_classes")
	}
	if !server.Children {
		t.Fatal("class with a subclass should be expandable")
	}
	if findNode(nodes, fmt.Sprintf("ci_class_%d", f.webClass)) != nil {
		t.Fatal("subclasses do not appear at the class root")
	}

	nodes, err = admin.tree(fmt.Sprintf("ci_class_%d", f.serverClass))
	if err != nil {
		t.Fatal(err)
	}
	if findNode(nodes, fmt.Sprintf("ci_class_%d", f.webClass)) == nil {
		t.Fatal("expanding the class should yield the subclass")
	}
	if findNode(nodes, f.ci) != nil {
		t.Fatal("basic-data class expansion never lists CIs")
	}
}

func TestTreeCisByClass(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	f := buildFixture(t, &admin)

	nodes, err := admin.tree("cis_by_class")
	if err != nil {
		t.Fatal(err)
	}
	server := findNode(nodes, fmt.Sprintf("ci_class_for_ci_%d", f.serverClass))
	if server == nil {
		t.Fatal("root classes should appear under cis_by_class in for-ci mode")
	}

	nodes, err = admin.tree(fmt.Sprintf("ci_class_for_ci_%d", f.serverClass))
	if err != nil {
		t.Fatal(err)
	}
	web := findNode(nodes, fmt.Sprintf("ci_class_for_ci_%d", f.webClass))
	if web == nil {
		t.Fatal("subclass should appear in for-ci mode")
	}
	if !web.Children {
		t.Fatal("subclass holding a CI should be expandable in for-ci mode")
	}

	nodes, err = admin.tree(fmt.Sprintf("ci_class_for_ci_%d", f.webClass))
	if err != nil {
		t.Fatal(err)
	}
	ci := findNode(nodes, f.ci)
	if ci == nil {
		t.Fatal("expanding the subclass should yield the CI")
	}
	if ci.Text != "WEB01 (WEB)" {
		t.Fatalf("ci label wrong: %v", ci.Text)
	}
}

func TestTreeUnknownTokensYieldEmptyLists(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	for _, token := range []string{"garbage", "ci_class_abc", "999999", "location_cis_999999"} {
		nodes, err := admin.tree(token)
		if err != nil {
			t.Fatalf("token %v should not error: %v", token, err)
		}
		if len(nodes) != 0 {
			t.Fatalf("token %v should yield an empty list", token)
		}
	}
}
