package tests

import (
	"errors"
	"fmt"
	"testing"
)

func TestLinkAndUnlinkCiMirrorsJournal(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	f := buildFixture(t, &admin)

	issueId, err := admin.createIssue("server down")
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.linkCi(issueId, f.ci); err != nil {
		t.Fatal(err)
	}

	err = admin.linkCi(issueId, f.ci)
	if !errors.Is(err, ErrConflict) {
		t.Fatal("double link should conflict")
	}

	cis, err := admin.issueCis(issueId)
	if err != nil {
		t.Fatal(err)
	}
	if len(cis) != 1 || cis[0].CiId != f.ci || cis[0].Label != "WEB01 (WEB)" {
		t.Fatalf("issue cis wrong: %+v", cis)
	}

	journal, err := admin.issueJournal(issueId)
	if err != nil {
		t.Fatal(err)
	}
	if len(journal) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(journal))
	}
	want := fmt.Sprintf("%d", f.ci)
	if journal[0].Property != "relation" || journal[0].PropKey != "ci" || journal[0].Value == nil || *journal[0].Value != want {
		t.Fatalf("link journal entry wrong: %+v", journal[0])
	}
	if journal[0].OldValue != nil {
		t.Fatal("link entry has no old value")
	}

	if err := admin.unlinkCi(issueId, f.ci); err != nil {
		t.Fatal(err)
	}

	err = admin.unlinkCi(issueId, f.ci)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("unlinking a missing link should be not found")
	}

	journal, err = admin.issueJournal(issueId)
	if err != nil {
		t.Fatal(err)
	}
	if len(journal) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(journal))
	}
	if journal[1].Value != nil || journal[1].OldValue == nil || *journal[1].OldValue != want {
		t.Fatalf("unlink journal entry wrong: %+v", journal[1])
	}
}

func TestAvailableCisExcludesLinked(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	f := buildFixture(t, &admin)

	res, err := admin.createCi(map[string]interface{}{
		"ci_class_id": f.webClass, "name_abbr": "WEB02",
	})
	if err != nil || !res.Success {
		t.Fatalf("create second ci failed: %+v %v", res, err)
	}
	secondCi := res.Id

	issueId, err := admin.createIssue("migration")
	if err != nil {
		t.Fatal(err)
	}

	// Root of the picker lists root classes in for-ci mode.
	nodes, err := admin.availableCis(issueId, "")
	if err != nil {
		t.Fatal(err)
	}
	if findNode(nodes, fmt.Sprintf("ci_class_for_ci_%d", f.serverClass)) == nil {
		t.Fatal("picker root should list the server class")
	}

	nodes, err = admin.availableCis(issueId, fmt.Sprintf("%d", f.webClass))
	if err != nil {
		t.Fatal(err)
	}
	if findNode(nodes, f.ci) == nil || findNode(nodes, secondCi) == nil {
		t.Fatal("both CIs should be pickable before linking")
	}

	if err := admin.linkCi(issueId, f.ci); err != nil {
		t.Fatal(err)
	}

	nodes, err = admin.availableCis(issueId, fmt.Sprintf("%d", f.webClass))
	if err != nil {
		t.Fatal(err)
	}
	if findNode(nodes, f.ci) != nil {
		t.Fatal("linked CI should be filtered out of the picker")
	}
	if findNode(nodes, secondCi) == nil {
		t.Fatal("unlinked CI should remain pickable")
	}
}

func TestExternalRefs(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	f := buildFixture(t, &admin)

	adminInfo, err := admin.userInfo()
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.createExternalSystem(map[string]interface{}{
		"responsible_user_id": adminInfo.Id,
		"name_abbr":           "DCIM",
		"ci_detail_url":       "https://dcim.example.com/assets/${key_ext}",
	})
	if err != nil || !res.Success {
		t.Fatalf("create external system failed: %+v %v", res, err)
	}
	extSysId := res.Id

	res, err = admin.addExternalRef(f.ci, extSysId, "A-100")
	if err != nil || !res.Success {
		t.Fatalf("add external ref failed: %+v %v", res, err)
	}

	res, err = admin.addExternalRef(f.ci, extSysId, "A-100")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("duplicate ref should be rejected: %+v", res)
	}

	refs, err := admin.listExternalRefs(f.ci)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ExtKey != "A-100" || refs[0].ExtSys != "DCIM" {
		t.Fatalf("refs wrong: %+v", refs)
	}
	if refs[0].DetailUrl != "https://dcim.example.com/assets/A-100" {
		t.Fatalf("detail url template not expanded: %v", refs[0].DetailUrl)
	}

	// The external system cannot be deleted while referenced.
	res, err = admin.deleteEntity(fmt.Sprintf("/external_systems/%d", extSysId))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || len(res.Errors) != 1 {
		t.Fatalf("referenced system delete should fail: %+v", res)
	}

	res, err = admin.removeExternalRef(f.ci, extSysId, "A-100")
	if err != nil || !res.Success {
		t.Fatalf("remove ref failed: %+v %v", res, err)
	}

	_, err = admin.removeExternalRef(f.ci, extSysId, "A-100")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("removing a missing ref should be not found")
	}

	res, err = admin.deleteEntity(fmt.Sprintf("/external_systems/%d", extSysId))
	if err != nil || !res.Success {
		t.Fatalf("delete system failed: %+v %v", res, err)
	}
}
