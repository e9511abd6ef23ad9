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

type CiClassService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *CiClassService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.ViewCapability))

		r.Get("/{ci_class_id}", s.Show)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.EditBasicDataCapability))

		r.Post("/create", s.Create)
		r.Put("/{ci_class_id}", s.Update)
		r.Delete("/{ci_class_id}", s.Delete)
	})

	return r
}

type ciClassRequest struct {
	Key          string `json:"key"`
	Sort         int    `json:"sort"`
	SubclassOfId *int64 `json:"subclass_of_id"`
	NameFull     string `json:"name_full"`
	NameAbbr     string `json:"name_abbr"`
	Comment      string `json:"comment"`
	DocUrl       string `json:"doc_url"`
}

func (p *ciClassRequest) validate() []string {
	errs := []string{}
	errs = validateRequired(errs, "Key", p.Key)
	errs = validateMaxLen(errs, "Key", p.Key, 50)
	errs = validateMaxLen(errs, "Full name", p.NameFull, 120)
	errs = validateMaxLen(errs, "Abbreviated name", p.NameAbbr, 15)
	errs = validateMaxLen(errs, "Comment", p.Comment, 10000)
	errs = validateMaxLen(errs, "Documentation URL", p.DocUrl, 1500)
	return errs
}

func (s *CiClassService) Show(w http.ResponseWriter, r *http.Request) {
	ciClassId, err := utils.URLParamInt(r, "ci_class_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ciClass, err := schema.GetCiClass(ciClassId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrCiClassNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, ciClass)
}

func (s *CiClassService) Create(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ci_class", "create").Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params ciClassRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	ciClass := schema.CiClass{
		Key:          params.Key,
		Sort:         params.Sort,
		SubclassOfId: params.SubclassOfId,
		NameFull:     params.NameFull,
		NameAbbr:     params.NameAbbr,
		Comment:      params.Comment,
		DocUrl:       params.DocUrl,
	}
	ciClass.Touch(user.Id, time.Now().UTC())

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if params.SubclassOfId != nil {
			if err := checkCiClassExists(txn, *params.SubclassOfId); err != nil {
				return err
			}
		}

		taken, err := schema.Exists(txn, &schema.CiClass{}, "key = ?", params.Key)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Key has already been taken")
			return nil
		}

		result := txn.Create(&ciClass)
		if result.Error != nil {
			slog.Error("sql error creating ci class", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating ci class: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("created ci class", "code", logging.ENTITY_CREATE, "ci_class_id", ciClass.Id, "key", ciClass.Key)

	writeCrudSuccess(w, ciClass.Id, "CI class was successfully created.")
}

func (s *CiClassService) Update(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ci_class", "update").Inc()

	ciClassId, err := utils.URLParamInt(r, "ci_class_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params ciClassRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	if params.SubclassOfId != nil && *params.SubclassOfId == ciClassId {
		writeCrudErrors(w, []string{"A class cannot be its own subclass"})
		return
	}

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		ciClass, err := schema.GetCiClass(ciClassId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrCiClassNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.SubclassOfId != nil {
			if err := checkCiClassExists(txn, *params.SubclassOfId); err != nil {
				return err
			}
		}

		taken, err := schema.Exists(txn, &schema.CiClass{}, "key = ? AND id <> ?", params.Key, ciClassId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Key has already been taken")
			return nil
		}

		ciClass.Key = params.Key
		ciClass.Sort = params.Sort
		ciClass.SubclassOfId = params.SubclassOfId
		ciClass.NameFull = params.NameFull
		ciClass.NameAbbr = params.NameAbbr
		ciClass.Comment = params.Comment
		ciClass.DocUrl = params.DocUrl
		ciClass.Touch(user.Id, time.Now().UTC())

		result := txn.Save(&ciClass)
		if result.Error != nil {
			slog.Error("sql error updating ci class", "ci_class_id", ciClassId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating ci class: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("updated ci class", "code", logging.ENTITY_UPDATE, "ci_class_id", ciClassId)

	writeCrudSuccess(w, ciClassId, "CI class was successfully updated.")
}

// Delete pre-checks subclasses and CIs, and still catches a late constraint
// violation from the store in case a dependent appeared between check and
// delete. An occupied class answers with the singular error field, which the
// client expects for this endpoint only.
func (s *CiClassService) Delete(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("ci_class", "delete").Inc()

	ciClassId, err := utils.URLParamInt(r, "ci_class_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var conflict string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkCiClassExists(txn, ciClassId); err != nil {
			return err
		}

		hasSubclasses, err := schema.CiClassHasSubclasses(ciClassId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if hasSubclasses {
			conflict = "CI class still has subclasses and cannot be deleted"
			return nil
		}

		hasCis, err := schema.CiClassHasCis(ciClassId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if hasCis {
			conflict = "CI class is still used by CIs and cannot be deleted"
			return nil
		}

		result := txn.Delete(&schema.CiClass{}, "id = ?", ciClassId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
				conflict = "CI class is still referenced and cannot be deleted"
				return nil
			}
			slog.Error("sql error deleting ci class", "ci_class_id", ciClassId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting ci class: %v", err), GetResponseCode(err))
		return
	}
	if conflict != "" {
		writeCrudConflict(w, conflict)
		return
	}

	slog.Info("deleted ci class", "code", logging.ENTITY_DELETE, "ci_class_id", ciClassId)

	writeCrudSuccess(w, ciClassId, "CI class was successfully deleted.")
}
