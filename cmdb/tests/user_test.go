package tests

import (
	"errors"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	info, err := user.userInfo()
	if err != nil {
		t.Fatal(err)
	}

	if info.Username != "abc" || info.Email != "abc@mail.com" || info.IsAdmin {
		t.Fatal("user info wrong")
	}

	c := env.newClient()
	if _, err := c.signup("abc", "other@mail.com", "password"); err == nil {
		t.Fatal("duplicate username should be rejected")
	}
	if _, err := c.signup("other", "abc@mail.com", "password"); err == nil {
		t.Fatal("duplicate email should be rejected")
	}

	err = c.login(loginInfo{Email: "abc@mail.com", Password: "wrong_password"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("bad password should be unauthorized")
	}
}

func TestPromoteDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.listUsers()
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("regular users cannot list users")
	}

	err = user.promoteAdmin(user.userId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("regular users cannot promote")
	}

	if err := admin.promoteAdmin(user.userId); err != nil {
		t.Fatal(err)
	}

	users, err := user.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatal("expected 2 users")
	}

	if err := admin.demoteAdmin(user.userId); err != nil {
		t.Fatal(err)
	}

	_, err = user.listUsers()
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("demoted user cannot list users")
	}
}

func TestGroupMembership(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createGroup("ops")
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("regular users cannot create groups")
	}

	group1, err := admin.createGroup("ops")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.createGroup("ops")
	if !errors.Is(err, ErrConflict) {
		t.Fatal("duplicate group name should conflict")
	}

	group2, err := admin.createGroup("dc")
	if err != nil {
		t.Fatal(err)
	}

	groups, err := admin.listGroups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Name != "dc" || groups[1].Name != "ops" {
		t.Fatal("groups should be listed sorted by name")
	}

	if err := admin.addUserToGroup(group1, user.userId); err != nil {
		t.Fatal(err)
	}

	members, err := admin.listGroupUsers(group1)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].Username != "abc" {
		t.Fatal("group members wrong")
	}

	info, err := user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Groups) != 1 || info.Groups[0] != group1 {
		t.Fatal("user group ids wrong")
	}

	if err := admin.removeUserFromGroup(group1, user.userId); err != nil {
		t.Fatal(err)
	}

	members, err = admin.listGroupUsers(group1)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 0 {
		t.Fatal("group should be empty")
	}

	if err := admin.deleteGroup(group2); err != nil {
		t.Fatal(err)
	}

	groups, err = admin.listGroups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Id != group1 {
		t.Fatal("expected only first group to remain")
	}
}
