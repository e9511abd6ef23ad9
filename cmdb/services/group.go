package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/schema"
	"cmdb_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *GroupService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.CreateGroup)

		r.Route("/{group_id}", func(r chi.Router) {
			r.Delete("/", s.DeleteGroup)

			r.Post("/users/{user_id}", s.AddUserToGroup)
			r.Delete("/users/{user_id}", s.RemoveUserFromGroup)

			r.Get("/users", s.GroupUsers)
		})
	})

	return r
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type createGroupResponse struct {
	GroupId int64 `json:"group_id"`
}

func (s *GroupService) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var params createGroupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "Group name must be specified", http.StatusBadRequest)
		return
	}

	newGroup := schema.Group{Name: params.Name}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existingGroup schema.Group
		result := txn.Limit(1).Find(&existingGroup, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate group name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("group with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newGroup)
		if result.Error != nil {
			slog.Error("sql error creating new group", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createGroupResponse{GroupId: newGroup.Id})
}

func (s *GroupService) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamInt(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkGroupExists(txn, groupId); err != nil {
			return err
		}

		result := txn.Delete(&schema.UserGroup{}, "group_id = ?", groupId)
		if result.Error != nil {
			slog.Error("sql error deleting group memberships", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Group{Id: groupId})
		if result.Error != nil {
			slog.Error("sql error deleting group", "group_id", groupId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *GroupService) parseMembershipParams(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	groupId, err := utils.URLParamInt(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, uuid.UUID{}, false
	}

	userParam, err := utils.URLParam(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, uuid.UUID{}, false
	}

	userId, err := uuid.Parse(userParam)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid user uuid '%v': %v", userParam, err), http.StatusBadRequest)
		return 0, uuid.UUID{}, false
	}

	return groupId, userId, true
}

func (s *GroupService) AddUserToGroup(w http.ResponseWriter, r *http.Request) {
	groupId, userId, ok := s.parseMembershipParams(w, r)
	if !ok {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkGroupExists(txn, groupId); err != nil {
			return err
		}

		if _, err := schema.GetUser(userId, txn); err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Create(&schema.UserGroup{UserId: userId, GroupId: groupId})
		if result.Error != nil {
			slog.Error("sql error creating new user_group entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding user to group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *GroupService) RemoveUserFromGroup(w http.ResponseWriter, r *http.Request) {
	groupId, userId, ok := s.parseMembershipParams(w, r)
	if !ok {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkGroupExists(txn, groupId); err != nil {
			return err
		}

		result := txn.Delete(&schema.UserGroup{UserId: userId, GroupId: groupId})
		if result.Error != nil {
			slog.Error("sql error deleting user_group entry", "group_id", groupId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("user is not a member of group"), http.StatusNotFound)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing user from group: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type GroupInfo struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *GroupService) List(w http.ResponseWriter, r *http.Request) {
	var groups []schema.Group
	result := s.db.Order("name").Find(&groups)
	if result.Error != nil {
		slog.Error("sql error listing groups", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing groups: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]GroupInfo, 0, len(groups))
	for _, group := range groups {
		infos = append(infos, GroupInfo{Id: group.Id, Name: group.Name})
	}

	utils.WriteJsonResponse(w, infos)
}

type GroupUserInfo struct {
	UserId   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (s *GroupService) GroupUsers(w http.ResponseWriter, r *http.Request) {
	groupId, err := utils.URLParamInt(r, "group_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkGroupExists(s.db, groupId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var memberships []schema.UserGroup
	result := s.db.Preload("User").Where("group_id = ?", groupId).Find(&memberships)
	if result.Error != nil {
		slog.Error("sql error listing group users", "group_id", groupId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing group users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]GroupUserInfo, 0, len(memberships))
	for _, m := range memberships {
		infos = append(infos, GroupUserInfo{UserId: m.UserId, Username: m.User.Username, Email: m.User.Email})
	}

	utils.WriteJsonResponse(w, infos)
}
