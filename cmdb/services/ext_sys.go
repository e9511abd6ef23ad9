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
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExternalSystemService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ExternalSystemService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.ViewCapability))

		r.Get("/{ext_sys_id}", s.Show)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.EditBasicDataCapability))

		r.Post("/create", s.Create)
		r.Put("/{ext_sys_id}", s.Update)
		r.Delete("/{ext_sys_id}", s.Delete)
	})

	return r
}

type externalSystemRequest struct {
	ResponsibleUserId uuid.UUID `json:"responsible_user_id"`
	DefaultLocationId *int64    `json:"default_location_id"`
	CiDetailUrl       string    `json:"ci_detail_url"`
	NameFull          string    `json:"name_full"`
	NameAbbr          string    `json:"name_abbr"`
	Comment           string    `json:"comment"`
	DocUrl            string    `json:"doc_url"`
}

func (p *externalSystemRequest) validate() []string {
	errs := []string{}
	if p.ResponsibleUserId == (uuid.UUID{}) {
		errs = append(errs, "Responsible user cannot be blank")
	}
	errs = validateMaxLen(errs, "CI detail URL", p.CiDetailUrl, 1500)
	errs = validateMaxLen(errs, "Full name", p.NameFull, 120)
	errs = validateMaxLen(errs, "Abbreviated name", p.NameAbbr, 50)
	errs = validateMaxLen(errs, "Comment", p.Comment, 10000)
	errs = validateMaxLen(errs, "Documentation URL", p.DocUrl, 1500)
	return errs
}

func (s *ExternalSystemService) Show(w http.ResponseWriter, r *http.Request) {
	extSysId, err := utils.URLParamInt(r, "ext_sys_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	extSys, err := schema.GetExternalSystem(extSysId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrExternalSystemNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, extSys)
}

func (s *ExternalSystemService) checkReferences(txn *gorm.DB, params *externalSystemRequest) error {
	if _, err := schema.GetUser(params.ResponsibleUserId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	if params.DefaultLocationId != nil {
		if err := checkLocationExists(txn, *params.DefaultLocationId); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExternalSystemService) Create(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ext_sys", "create").Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params externalSystemRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	extSys := schema.ExternalSystem{
		ResponsibleUserId: params.ResponsibleUserId,
		DefaultLocationId: params.DefaultLocationId,
		CiDetailUrl:       params.CiDetailUrl,
		NameFull:          params.NameFull,
		NameAbbr:          params.NameAbbr,
		Comment:           params.Comment,
		DocUrl:            params.DocUrl,
	}
	extSys.Touch(user.Id, time.Now().UTC())

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := s.checkReferences(txn, &params); err != nil {
			return err
		}

		taken, err := schema.Exists(txn, &schema.ExternalSystem{}, "responsible_user_id = ?", params.ResponsibleUserId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Responsible user already owns an external system")
			return nil
		}

		result := txn.Create(&extSys)
		if result.Error != nil {
			slog.Error("sql error creating external system", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating external system: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("created external system", "code", logging.ENTITY_CREATE, "ext_sys_id", extSys.Id)

	writeCrudSuccess(w, extSys.Id, "External system was successfully created.")
}

func (s *ExternalSystemService) Update(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ext_sys", "update").Inc()

	extSysId, err := utils.URLParamInt(r, "ext_sys_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params externalSystemRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		extSys, err := schema.GetExternalSystem(extSysId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrExternalSystemNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := s.checkReferences(txn, &params); err != nil {
			return err
		}

		taken, err := schema.Exists(txn, &schema.ExternalSystem{}, "responsible_user_id = ? AND id <> ?", params.ResponsibleUserId, extSysId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Responsible user already owns an external system")
			return nil
		}

		extSys.ResponsibleUserId = params.ResponsibleUserId
		extSys.DefaultLocationId = params.DefaultLocationId
		extSys.CiDetailUrl = params.CiDetailUrl
		extSys.NameFull = params.NameFull
		extSys.NameAbbr = params.NameAbbr
		extSys.Comment = params.Comment
		extSys.DocUrl = params.DocUrl
		extSys.Touch(user.Id, time.Now().UTC())

		result := txn.Save(&extSys)
		if result.Error != nil {
			slog.Error("sql error updating external system", "ext_sys_id", extSysId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating external system: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("updated external system", "code", logging.ENTITY_UPDATE, "ext_sys_id", extSysId)

	writeCrudSuccess(w, extSysId, "External system was successfully updated.")
}

func (s *ExternalSystemService) Delete(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ext_sys", "delete").Inc()

	extSysId, err := utils.URLParamInt(r, "ext_sys_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var occupied bool
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkExternalSystemExists(txn, extSysId); err != nil {
			return err
		}

		hasRefs, err := schema.Exists(txn, &schema.CiExternalRef{}, "ext_sys_id = ?", extSysId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if hasRefs {
			occupied = true
			return nil
		}

		result := txn.Delete(&schema.ExternalSystem{}, "id = ?", extSysId)
		if result.Error != nil {
			slog.Error("sql error deleting external system", "ext_sys_id", extSysId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting external system: %v", err), GetResponseCode(err))
		return
	}
	if occupied {
		writeCrudErrors(w, []string{"External system is still referenced by CIs and cannot be deleted"})
		return
	}

	slog.Info("deleted external system", "code", logging.ENTITY_DELETE, "ext_sys_id", extSysId)

	writeCrudSuccess(w, extSysId, "External system was successfully deleted.")
}
