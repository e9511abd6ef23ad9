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

type CiService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *CiService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.ViewCapability))

		r.Get("/{ci_id}", s.Show)
		r.Get("/{ci_id}/external_refs", s.ListExternalRefs)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.EditCapability))

		r.Post("/create", s.Create)
		r.Put("/{ci_id}", s.Update)
		r.Delete("/{ci_id}", s.Delete)

		r.Post("/{ci_id}/external_refs", s.AddExternalRef)
		r.Delete("/{ci_id}/external_refs/{ext_sys_id}/{ext_key}", s.RemoveExternalRef)
	})

	return r
}

type ciRequest struct {
	CiClassId  int64  `json:"ci_class_id"`
	LocationId *int64 `json:"location_id"`
	StatusId   *int64 `json:"status_id"`
	NameFull   string `json:"name_full"`
	NameAbbr   string `json:"name_abbr"`
	Comment    string `json:"comment"`
	DocUrl     string `json:"doc_url"`
	Producer   string `json:"producer"`
	Model      string `json:"model"`
	TagSerial  string `json:"tag_serial"`
}

func (p *ciRequest) validate() []string {
	errs := []string{}
	if p.CiClassId == 0 {
		errs = append(errs, "CI class cannot be blank")
	}
	errs = validateMaxLen(errs, "Full name", p.NameFull, 120)
	errs = validateMaxLen(errs, "Abbreviated name", p.NameAbbr, 50)
	errs = validateMaxLen(errs, "Comment", p.Comment, 10000)
	errs = validateMaxLen(errs, "Documentation URL", p.DocUrl, 1500)
	errs = validateMaxLen(errs, "Producer", p.Producer, 100)
	errs = validateMaxLen(errs, "Model", p.Model, 100)
	errs = validateMaxLen(errs, "Tag/Serial", p.TagSerial, 40)
	return errs
}

func (s *CiService) checkReferences(txn *gorm.DB, params *ciRequest) error {
	if err := checkCiClassExists(txn, params.CiClassId); err != nil {
		return err
	}
	if params.LocationId != nil {
		if err := checkLocationExists(txn, *params.LocationId); err != nil {
			return err
		}
	}
	if params.StatusId != nil {
		if err := checkStatusExists(txn, *params.StatusId); err != nil {
			return err
		}
	}
	return nil
}

func (s *CiService) Show(w http.ResponseWriter, r *http.Request) {
	ciId, err := utils.URLParamInt(r, "ci_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ci, err := schema.GetCi(ciId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrCiNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, ci)
}

func (s *CiService) Create(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ci", "create").Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params ciRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	ci := schema.Ci{
		CiClassId:  params.CiClassId,
		LocationId: params.LocationId,
		StatusId:   params.StatusId,
		NameFull:   params.NameFull,
		NameAbbr:   params.NameAbbr,
		Comment:    params.Comment,
		DocUrl:     params.DocUrl,
		Producer:   params.Producer,
		Model:      params.Model,
		TagSerial:  params.TagSerial,
	}
	ci.Touch(user.Id, time.Now().UTC())

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := s.checkReferences(txn, &params); err != nil {
			return err
		}

		result := txn.Create(&ci)
		if result.Error != nil {
			slog.Error("sql error creating ci", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating ci: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created ci", "code", logging.ENTITY_CREATE, "ci_id", ci.Id)

	writeCrudSuccess(w, ci.Id, "CI was successfully created.")
}

func (s *CiService) Update(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ci", "update").Inc()

	ciId, err := utils.URLParamInt(r, "ci_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params ciRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		ci, err := schema.GetCi(ciId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrCiNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := s.checkReferences(txn, &params); err != nil {
			return err
		}

		ci.CiClassId = params.CiClassId
		ci.LocationId = params.LocationId
		ci.StatusId = params.StatusId
		ci.NameFull = params.NameFull
		ci.NameAbbr = params.NameAbbr
		ci.Comment = params.Comment
		ci.DocUrl = params.DocUrl
		ci.Producer = params.Producer
		ci.Model = params.Model
		ci.TagSerial = params.TagSerial
		ci.Touch(user.Id, time.Now().UTC())

		result := txn.Save(&ci)
		if result.Error != nil {
			slog.Error("sql error updating ci", "ci_id", ciId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating ci: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("updated ci", "code", logging.ENTITY_UPDATE, "ci_id", ciId)

	writeCrudSuccess(w, ciId, "CI was successfully updated.")
}

// Delete removes the CI together with its issue links and external refs.
func (s *CiService) Delete(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ci", "delete").Inc()

	ciId, err := utils.URLParamInt(r, "ci_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkCiExists(txn, ciId); err != nil {
			return err
		}

		result := txn.Delete(&schema.CiIssue{}, "ci_id = ?", ciId)
		if result.Error != nil {
			slog.Error("sql error deleting ci issue links", "ci_id", ciId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.CiExternalRef{}, "ci_id = ?", ciId)
		if result.Error != nil {
			slog.Error("sql error deleting ci external refs", "ci_id", ciId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Ci{}, "id = ?", ciId)
		if result.Error != nil {
			slog.Error("sql error deleting ci", "ci_id", ciId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting ci: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("deleted ci", "code", logging.ENTITY_DELETE, "ci_id", ciId)

	writeCrudSuccess(w, ciId, "CI was successfully deleted.")
}
