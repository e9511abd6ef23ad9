package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/schema"
	"cmdb_platform/utils"
	"cmdb_platform/utils/logging"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type HierarchyService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *HierarchyService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.ViewCapability))

		r.Get("/list", s.List)
		r.Get("/{hierarchy_id}", s.Show)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.EditBasicDataCapability))

		r.Post("/create", s.Create)
		r.Put("/{hierarchy_id}", s.Update)
		r.Delete("/{hierarchy_id}", s.Delete)
	})

	return r
}

type hierarchyRequest struct {
	Key      string `json:"key"`
	Level    *int   `json:"level"`
	NameFull string `json:"name_full"`
	NameAbbr string `json:"name_abbr"`
	Comment  string `json:"comment"`
	DocUrl   string `json:"doc_url"`
}

func (p *hierarchyRequest) validate() []string {
	errs := []string{}
	errs = validateRequired(errs, "Key", p.Key)
	errs = validateMaxLen(errs, "Key", p.Key, 50)
	if p.Level == nil {
		errs = append(errs, "Level cannot be blank")
	}
	errs = validateMaxLen(errs, "Full name", p.NameFull, 120)
	errs = validateMaxLen(errs, "Abbreviated name", p.NameAbbr, 15)
	errs = validateMaxLen(errs, "Comment", p.Comment, 10000)
	errs = validateMaxLen(errs, "Documentation URL", p.DocUrl, 1500)
	return errs
}

func (s *HierarchyService) List(w http.ResponseWriter, r *http.Request) {
	var levels []schema.LocationHierarchy
	result := s.db.Order("level").Find(&levels)
	if result.Error != nil {
		slog.Error("sql error listing hierarchy levels", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing hierarchy levels: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, levels)
}

func (s *HierarchyService) Show(w http.ResponseWriter, r *http.Request) {
	hierarchyId, err := utils.URLParamInt(r, "hierarchy_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	level, err := schema.GetHierarchy(hierarchyId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrHierarchyNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, level)
}

func (s *HierarchyService) Create(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("hierarchy", "create").Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params hierarchyRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	level := schema.LocationHierarchy{
		Key:      params.Key,
		Level:    *params.Level,
		NameFull: params.NameFull,
		NameAbbr: params.NameAbbr,
		Comment:  params.Comment,
		DocUrl:   params.DocUrl,
	}
	level.Touch(user.Id, time.Now().UTC())

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		keyTaken, err := schema.Exists(txn, &schema.LocationHierarchy{}, "key = ?", params.Key)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if keyTaken {
			validationErrs = append(validationErrs, "Key has already been taken")
		}

		levelTaken, err := schema.Exists(txn, &schema.LocationHierarchy{}, "level = ?", *params.Level)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if levelTaken {
			validationErrs = append(validationErrs, "Level has already been taken")
		}

		if len(validationErrs) > 0 {
			return nil
		}

		result := txn.Create(&level)
		if result.Error != nil {
			slog.Error("sql error creating hierarchy level", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating hierarchy level: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("created hierarchy level", "code", logging.ENTITY_CREATE, "hierarchy_id", level.Id, "key", level.Key)

	writeCrudSuccess(w, level.Id, "Hierarchy level was successfully created.")
}

func (s *HierarchyService) Update(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("hierarchy", "update").Inc()

	hierarchyId, err := utils.URLParamInt(r, "hierarchy_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params hierarchyRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		level, err := schema.GetHierarchy(hierarchyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrHierarchyNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		keyTaken, err := schema.Exists(txn, &schema.LocationHierarchy{}, "key = ? AND id <> ?", params.Key, hierarchyId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if keyTaken {
			validationErrs = append(validationErrs, "Key has already been taken")
		}

		levelTaken, err := schema.Exists(txn, &schema.LocationHierarchy{}, "level = ? AND id <> ?", *params.Level, hierarchyId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if levelTaken {
			validationErrs = append(validationErrs, "Level has already been taken")
		}

		if len(validationErrs) > 0 {
			return nil
		}

		level.Key = params.Key
		level.Level = *params.Level
		level.NameFull = params.NameFull
		level.NameAbbr = params.NameAbbr
		level.Comment = params.Comment
		level.DocUrl = params.DocUrl
		level.Touch(user.Id, time.Now().UTC())

		result := txn.Save(&level)
		if result.Error != nil {
			slog.Error("sql error updating hierarchy level", "hierarchy_id", hierarchyId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating hierarchy level: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("updated hierarchy level", "code", logging.ENTITY_UPDATE, "hierarchy_id", hierarchyId)

	writeCrudSuccess(w, hierarchyId, "Hierarchy level was successfully updated.")
}

func (s *HierarchyService) Delete(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("hierarchy", "delete").Inc()

	hierarchyId, err := utils.URLParamInt(r, "hierarchy_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var occupied bool
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkHierarchyExists(txn, hierarchyId); err != nil {
			return err
		}

		hasLocations, err := schema.HierarchyHasLocations(hierarchyId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if hasLocations {
			occupied = true
			return nil
		}

		result := txn.Delete(&schema.LocationHierarchy{}, "id = ?", hierarchyId)
		if result.Error != nil {
			slog.Error("sql error deleting hierarchy level", "hierarchy_id", hierarchyId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting hierarchy level: %v", err), GetResponseCode(err))
		return
	}
	if occupied {
		writeCrudErrors(w, []string{"Hierarchy level is still referenced by locations and cannot be deleted"})
		return
	}

	slog.Info("deleted hierarchy level", "code", logging.ENTITY_DELETE, "hierarchy_id", hierarchyId)

	writeCrudSuccess(w, hierarchyId, "Hierarchy level was successfully deleted.")
}
