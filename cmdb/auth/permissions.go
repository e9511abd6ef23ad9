package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cmdb_platform/cmdb/schema"

	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type capability int // Private so that no other capabilities can be defined

const (
	ViewCapability capability = iota
	EditCapability
	EditBasicDataCapability
)

func capabilityToString(cap capability) string {
	switch cap {
	case ViewCapability:
		return "view_cmdb"
	case EditCapability:
		return "edit_cmdb"
	case EditBasicDataCapability:
		return "edit_basic_data"
	default:
		return "invalid capability"
	}
}

// PermissionSettingsKey is the settings row that stores which groups hold
// which capability.
const PermissionSettingsKey = "cmdb_permissions"

type PermissionSettings struct {
	ViewCmdbGroups      []int64 `json:"view_cmdb_groups"`
	EditCmdbGroups      []int64 `json:"edit_cmdb_groups"`
	EditBasicDataGroups []int64 `json:"edit_basic_data_groups"`
}

// LoadPermissionSettings returns the stored capability assignments. A missing
// settings row means no group holds any capability.
func LoadPermissionSettings(db *gorm.DB) (PermissionSettings, error) {
	var setting schema.Setting
	result := db.First(&setting, "key = ?", PermissionSettingsKey)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return PermissionSettings{}, nil
		}
		slog.Error("sql error loading permission settings", "error", result.Error)
		return PermissionSettings{}, schema.ErrDbAccessFailed
	}

	var settings PermissionSettings
	if err := json.Unmarshal([]byte(setting.Value), &settings); err != nil {
		return PermissionSettings{}, fmt.Errorf("error parsing permission settings: %w", err)
	}
	return settings, nil
}

func SavePermissionSettings(db *gorm.DB, settings PermissionSettings) error {
	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error serializing permission settings: %w", err)
	}

	result := db.Save(&schema.Setting{Key: PermissionSettingsKey, Value: string(value)})
	if result.Error != nil {
		slog.Error("sql error saving permission settings", "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

func anyGroupIn(groupIds, allowed []int64) bool {
	for _, id := range groupIds {
		for _, a := range allowed {
			if id == a {
				return true
			}
		}
	}
	return false
}

// HasCapability resolves a capability for a user from their group memberships.
// Admins hold every capability; either edit capability implies view.
func HasCapability(user schema.User, groupIds []int64, cap capability, settings PermissionSettings) bool {
	if user.IsAdmin {
		return true
	}

	switch cap {
	case ViewCapability:
		return anyGroupIn(groupIds, settings.ViewCmdbGroups) ||
			anyGroupIn(groupIds, settings.EditCmdbGroups) ||
			anyGroupIn(groupIds, settings.EditBasicDataGroups)
	case EditCapability:
		return anyGroupIn(groupIds, settings.EditCmdbGroups)
	case EditBasicDataCapability:
		return anyGroupIn(groupIds, settings.EditBasicDataGroups)
	default:
		return false
	}
}

// Capabilities is the resolved capability set for one request.
type Capabilities struct {
	View          bool
	Edit          bool
	EditBasicData bool
}

func ResolveCapabilities(user schema.User, db *gorm.DB) (Capabilities, error) {
	if user.IsAdmin {
		return Capabilities{View: true, Edit: true, EditBasicData: true}, nil
	}

	groupIds, err := schema.GetUserGroupIds(user.Id, db)
	if err != nil {
		return Capabilities{}, err
	}

	settings, err := LoadPermissionSettings(db)
	if err != nil {
		return Capabilities{}, err
	}

	return Capabilities{
		View:          HasCapability(user, groupIds, ViewCapability, settings),
		Edit:          HasCapability(user, groupIds, EditCapability, settings),
		EditBasicData: HasCapability(user, groupIds, EditBasicDataCapability, settings),
	}, nil
}

func CapabilityOnly(db *gorm.DB, cap capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if user.IsAdmin {
				next.ServeHTTP(w, r)
				return
			}

			groupIds, err := schema.GetUserGroupIds(user.Id, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			settings, err := LoadPermissionSettings(db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !HasCapability(user, groupIds, cap, settings) {
				http.Error(w, fmt.Sprintf("user %v does not have required capability %v", user.Id, capabilityToString(cap)), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
