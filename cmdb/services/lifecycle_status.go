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

type LifecycleStatusService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *LifecycleStatusService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.ViewCapability))

		r.Get("/{status_id}", s.Show)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.EditBasicDataCapability))

		r.Post("/create", s.Create)
		r.Put("/{status_id}", s.Update)
		r.Delete("/{status_id}", s.Delete)
	})

	return r
}

type lifecycleStatusRequest struct {
	Key      string `json:"key"`
	NameFull string `json:"name_full"`
	NameAbbr string `json:"name_abbr"`
	Comment  string `json:"comment"`
	DocUrl   string `json:"doc_url"`
}

func (p *lifecycleStatusRequest) validate() []string {
	errs := []string{}
	errs = validateRequired(errs, "Key", p.Key)
	errs = validateMaxLen(errs, "Key", p.Key, 50)
	errs = validateMaxLen(errs, "Full name", p.NameFull, 120)
	errs = validateMaxLen(errs, "Abbreviated name", p.NameAbbr, 15)
	errs = validateMaxLen(errs, "Comment", p.Comment, 10000)
	errs = validateMaxLen(errs, "Documentation URL", p.DocUrl, 1500)
	return errs
}

func (s *LifecycleStatusService) Show(w http.ResponseWriter, r *http.Request) {
	statusId, err := utils.URLParamInt(r, "status_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status, err := schema.GetLifecycleStatus(statusId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrLifecycleStatusNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, status)
}

func (s *LifecycleStatusService) Create(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("lifecycle_status", "create").Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params lifecycleStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	status := schema.LifecycleStatus{
		Key:      params.Key,
		NameFull: params.NameFull,
		NameAbbr: params.NameAbbr,
		Comment:  params.Comment,
		DocUrl:   params.DocUrl,
	}
	status.Touch(user.Id, time.Now().UTC())

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		taken, err := schema.Exists(txn, &schema.LifecycleStatus{}, "key = ?", params.Key)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Key has already been taken")
			return nil
		}

		result := txn.Create(&status)
		if result.Error != nil {
			slog.Error("sql error creating lifecycle status", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating lifecycle status: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("created lifecycle status", "code", logging.ENTITY_CREATE, "status_id", status.Id, "key", status.Key)

	writeCrudSuccess(w, status.Id, "Lifecycle status was successfully created.")
}

func (s *LifecycleStatusService) Update(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("lifecycle_status", "update").Inc()

	statusId, err := utils.URLParamInt(r, "status_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params lifecycleStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		status, err := schema.GetLifecycleStatus(statusId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrLifecycleStatusNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		taken, err := schema.Exists(txn, &schema.LifecycleStatus{}, "key = ? AND id <> ?", params.Key, statusId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Key has already been taken")
			return nil
		}

		status.Key = params.Key
		status.NameFull = params.NameFull
		status.NameAbbr = params.NameAbbr
		status.Comment = params.Comment
		status.DocUrl = params.DocUrl
		status.Touch(user.Id, time.Now().UTC())

		result := txn.Save(&status)
		if result.Error != nil {
			slog.Error("sql error updating lifecycle status", "status_id", statusId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating lifecycle status: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("updated lifecycle status", "code", logging.ENTITY_UPDATE, "status_id", statusId)

	writeCrudSuccess(w, statusId, "Lifecycle status was successfully updated.")
}

func (s *LifecycleStatusService) Delete(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("lifecycle_status", "delete").Inc()

	statusId, err := utils.URLParamInt(r, "status_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var occupied bool
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkStatusExists(txn, statusId); err != nil {
			return err
		}

		hasCis, err := schema.StatusHasCis(statusId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if hasCis {
			occupied = true
			return nil
		}

		result := txn.Delete(&schema.LifecycleStatus{}, "id = ?", statusId)
		if result.Error != nil {
			slog.Error("sql error deleting lifecycle status", "status_id", statusId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting lifecycle status: %v", err), GetResponseCode(err))
		return
	}
	if occupied {
		writeCrudErrors(w, []string{"Lifecycle status is still used by CIs and cannot be deleted"})
		return
	}

	slog.Info("deleted lifecycle status", "code", logging.ENTITY_DELETE, "status_id", statusId)

	writeCrudSuccess(w, statusId, "Lifecycle status was successfully deleted.")
}
