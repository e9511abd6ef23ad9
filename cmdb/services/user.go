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

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if s.userAuth.AllowDirectSignup() {
			r.Post("/signup", s.Signup)
		}

		r.Get("/login", s.LoginWithEmail)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/info", s.Info)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Get("/list", s.List)

		r.Post("/{user_id}/admin", s.PromoteAdmin)
		r.Delete("/{user_id}/admin", s.DemoteAdmin)
	})

	return r
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	UserId uuid.UUID `json:"user_id"`
}

func (s *UserService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if !s.userAuth.AllowDirectSignup() {
		http.Error(w, "direct signup is not supported for this identity provider", http.StatusBadRequest)
		return
	}

	userId, err := s.userAuth.CreateUser(params.Username, params.Email, params.Password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrEmailAlreadyInUse):
			responseCode = http.StatusConflict
		case errors.Is(err, auth.ErrUsernameAlreadyInUse):
			responseCode = http.StatusConflict
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	res := signupResponse{UserId: userId}
	utils.WriteJsonResponse(w, res)
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

func (s *UserService) LoginWithEmail(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}

	login, err := s.userAuth.LoginWithEmail(email, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrUserNotFoundWithEmail):
			responseCode = http.StatusNotFound
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	res := loginResponse{UserId: login.UserId, AccessToken: login.AccessToken}
	utils.WriteJsonResponse(w, res)
}

type UserInfo struct {
	Id       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	IsAdmin  bool      `json:"is_admin"`
	Groups   []int64   `json:"groups"`
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	groupIds, err := schema.GetUserGroupIds(user.Id, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, UserInfo{Id: user.Id, Username: user.Username, Email: user.Email, IsAdmin: user.IsAdmin, Groups: groupIds})
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	var users []schema.User
	result := s.db.Preload("Groups").Find(&users)
	if result.Error != nil {
		slog.Error("sql error listing users", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]UserInfo, 0, len(users))
	for _, user := range users {
		groups := make([]int64, 0, len(user.Groups))
		for _, g := range user.Groups {
			groups = append(groups, g.GroupId)
		}
		infos = append(infos, UserInfo{Id: user.Id, Username: user.Username, Email: user.Email, IsAdmin: user.IsAdmin, Groups: groups})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *UserService) updateAdminFlag(w http.ResponseWriter, r *http.Request, isAdmin bool) {
	userId, err := utils.URLParam(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userUUID, err := uuid.Parse(userId)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid user uuid '%v': %v", userId, err), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetUser(userUUID, txn); err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.User{Id: userUUID}).Update("is_admin", isAdmin)
		if result.Error != nil {
			slog.Error("sql error updating user admin flag", "user_id", userUUID, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating admin flag: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *UserService) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	s.updateAdminFlag(w, r, true)
}

func (s *UserService) DemoteAdmin(w http.ResponseWriter, r *http.Request) {
	s.updateAdminFlag(w, r, false)
}
