package tests

import (
	"bytes"
	"testing"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/schema"
	"cmdb_platform/cmdb/services"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	platform services.CmdbPlatform
	api      chi.Router
	db       *gorm.DB
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		t.Fatal(err)
	}

	secret := []byte("290zcv02ai249")

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        secret,
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	platform := services.NewCmdbPlatform(db, userAuth)

	return &testEnv{platform: platform, api: platform.Routes(), db: db}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}

// grantCapability puts the user into a fresh group and registers that group
// for the given capability field of the permission settings document.
func (env *testEnv) grantCapability(t *testing.T, admin *client, user *client, field string) int64 {
	groupId, err := admin.createGroup(field + "_" + user.userId)
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.addUserToGroup(groupId, user.userId); err != nil {
		t.Fatal(err)
	}

	settings, err := admin.getPermissions()
	if err != nil {
		t.Fatal(err)
	}

	switch field {
	case "view":
		settings.ViewCmdbGroups = append(settings.ViewCmdbGroups, groupId)
	case "edit":
		settings.EditCmdbGroups = append(settings.EditCmdbGroups, groupId)
	case "edit_basic_data":
		settings.EditBasicDataGroups = append(settings.EditBasicDataGroups, groupId)
	default:
		t.Fatalf("unknown capability field %v", field)
	}

	if err := admin.setPermissions(settings); err != nil {
		t.Fatal(err)
	}

	return groupId
}
