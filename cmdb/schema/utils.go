package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrGroupNotFound           = errors.New("group not found")
	ErrUserGroupNotFound       = errors.New("user group membership not found")
	ErrLocationNotFound        = errors.New("location not found")
	ErrHierarchyNotFound       = errors.New("location hierarchy level not found")
	ErrCiClassNotFound         = errors.New("ci class not found")
	ErrLifecycleStatusNotFound = errors.New("lifecycle status not found")
	ErrCiNotFound              = errors.New("ci not found")
	ErrExternalSystemNotFound  = errors.New("external system not found")
	ErrIssueNotFound           = errors.New("issue not found")
	ErrDbAccessFailed          = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetGroup(groupId int64, db *gorm.DB) (Group, error) {
	var group Group

	result := db.First(&group, "id = ?", groupId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return group, ErrGroupNotFound
		}
		slog.Error("sql error in get group", "group_id", groupId, "error", result.Error)
		return group, ErrDbAccessFailed
	}

	return group, nil
}

func GetUserGroupIds(userId uuid.UUID, db *gorm.DB) ([]int64, error) {
	var memberships []UserGroup
	result := db.Find(&memberships, "user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error in get user group ids", "user_id", userId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	ids := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.GroupId)
	}
	return ids, nil
}

func GetLocation(locationId int64, db *gorm.DB, loadType bool) (Location, error) {
	var location Location

	query := db
	if loadType {
		query = query.Preload("Type")
	}
	result := query.First(&location, "id = ?", locationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return location, ErrLocationNotFound
		}
		slog.Error("sql error in get location", "location_id", locationId, "error", result.Error)
		return location, ErrDbAccessFailed
	}

	return location, nil
}

func GetHierarchy(hierarchyId int64, db *gorm.DB) (LocationHierarchy, error) {
	var hierarchy LocationHierarchy

	result := db.First(&hierarchy, "id = ?", hierarchyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return hierarchy, ErrHierarchyNotFound
		}
		slog.Error("sql error in get hierarchy level", "hierarchy_id", hierarchyId, "error", result.Error)
		return hierarchy, ErrDbAccessFailed
	}

	return hierarchy, nil
}

func GetCiClass(ciClassId int64, db *gorm.DB) (CiClass, error) {
	var ciClass CiClass

	result := db.First(&ciClass, "id = ?", ciClassId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ciClass, ErrCiClassNotFound
		}
		slog.Error("sql error in get ci class", "ci_class_id", ciClassId, "error", result.Error)
		return ciClass, ErrDbAccessFailed
	}

	return ciClass, nil
}

func GetLifecycleStatus(statusId int64, db *gorm.DB) (LifecycleStatus, error) {
	var status LifecycleStatus

	result := db.First(&status, "id = ?", statusId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return status, ErrLifecycleStatusNotFound
		}
		slog.Error("sql error in get lifecycle status", "status_id", statusId, "error", result.Error)
		return status, ErrDbAccessFailed
	}

	return status, nil
}

func GetCi(ciId int64, db *gorm.DB, loadRefs bool) (Ci, error) {
	var ci Ci

	query := db
	if loadRefs {
		query = query.Preload("CiClass").Preload("Location").Preload("Status")
	}
	result := query.First(&ci, "id = ?", ciId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ci, ErrCiNotFound
		}
		slog.Error("sql error in get ci", "ci_id", ciId, "error", result.Error)
		return ci, ErrDbAccessFailed
	}

	return ci, nil
}

func GetExternalSystem(extSysId int64, db *gorm.DB) (ExternalSystem, error) {
	var extSys ExternalSystem

	result := db.First(&extSys, "id = ?", extSysId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return extSys, ErrExternalSystemNotFound
		}
		slog.Error("sql error in get external system", "ext_sys_id", extSysId, "error", result.Error)
		return extSys, ErrDbAccessFailed
	}

	return extSys, nil
}

func GetIssue(issueId int64, db *gorm.DB) (Issue, error) {
	var issue Issue

	result := db.First(&issue, "id = ?", issueId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return issue, ErrIssueNotFound
		}
		slog.Error("sql error in get issue", "issue_id", issueId, "error", result.Error)
		return issue, ErrDbAccessFailed
	}

	return issue, nil
}

// Exists runs an existence check (not a count) for the given condition.
func Exists(db *gorm.DB, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	result := db.Model(model).Where(query, args...).Limit(1).Count(&count)
	if result.Error != nil {
		slog.Error("sql error in existence check", "query", query, "error", result.Error)
		return false, ErrDbAccessFailed
	}
	return count > 0, nil
}

// LocationHasChildren reports whether any location points at locationId
// through either parent reference.
func LocationHasChildren(locationId int64, db *gorm.DB) (bool, error) {
	return Exists(db, &Location{}, "parent1_id = ? OR parent2_id = ?", locationId, locationId)
}

func CiClassHasSubclasses(ciClassId int64, db *gorm.DB) (bool, error) {
	return Exists(db, &CiClass{}, "subclass_of_id = ?", ciClassId)
}

func CiClassHasCis(ciClassId int64, db *gorm.DB) (bool, error) {
	return Exists(db, &Ci{}, "ci_class_id = ?", ciClassId)
}

func LocationHasCis(locationId int64, db *gorm.DB) (bool, error) {
	return Exists(db, &Ci{}, "location_id = ?", locationId)
}

func HierarchyHasLocations(hierarchyId int64, db *gorm.DB) (bool, error) {
	return Exists(db, &Location{}, "type_id = ?", hierarchyId)
}

func StatusHasCis(statusId int64, db *gorm.DB) (bool, error) {
	return Exists(db, &Ci{}, "status_id = ?", statusId)
}
