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

type LocationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *LocationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.ViewCapability))

		r.Get("/{location_id}", s.Show)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.EditCapability))

		r.Post("/create", s.Create)
		r.Put("/{location_id}", s.Update)
		r.Delete("/{location_id}", s.Delete)
	})

	return r
}

type locationRequest struct {
	Key       string `json:"key"`
	TypeId    int64  `json:"type_id"`
	Parent1Id *int64 `json:"parent1_id"`
	Parent2Id *int64 `json:"parent2_id"`
	NameFull  string `json:"name_full"`
	NameAbbr  string `json:"name_abbr"`
	Comment   string `json:"comment"`
	DocUrl    string `json:"doc_url"`
}

func (p *locationRequest) validate() []string {
	errs := []string{}
	if p.TypeId == 0 {
		errs = append(errs, "Type cannot be blank")
	}
	errs = validateMaxLen(errs, "Key", p.Key, 50)
	errs = validateMaxLen(errs, "Full name", p.NameFull, 120)
	errs = validateMaxLen(errs, "Abbreviated name", p.NameAbbr, 15)
	errs = validateMaxLen(errs, "Comment", p.Comment, 10000)
	errs = validateMaxLen(errs, "Documentation URL", p.DocUrl, 1500)
	return errs
}

// normalizedKey maps an empty key to nil so the natural-key uniqueness check
// never compares empty strings.
func (p *locationRequest) normalizedKey() *string {
	if p.Key == "" {
		return nil
	}
	key := p.Key
	return &key
}

func (s *LocationService) Show(w http.ResponseWriter, r *http.Request) {
	locationId, err := utils.URLParamInt(r, "location_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	location, err := schema.GetLocation(locationId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrLocationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, location)
}

// checkNaturalKey enforces the (key, type, parent1, parent2) uniqueness, which
// only applies when a key is present.
func checkLocationNaturalKey(txn *gorm.DB, key *string, typeId int64, parent1Id, parent2Id *int64, excludeId int64) (bool, error) {
	if key == nil {
		return false, nil
	}

	query := txn.Model(&schema.Location{}).Where("key = ? AND type_id = ?", *key, typeId)
	if parent1Id != nil {
		query = query.Where("parent1_id = ?", *parent1Id)
	} else {
		query = query.Where("parent1_id IS NULL")
	}
	if parent2Id != nil {
		query = query.Where("parent2_id = ?", *parent2Id)
	} else {
		query = query.Where("parent2_id IS NULL")
	}
	if excludeId != 0 {
		query = query.Where("id <> ?", excludeId)
	}

	var count int64
	result := query.Limit(1).Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking location natural key", "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}
	return count > 0, nil
}

func (s *LocationService) checkReferences(txn *gorm.DB, params *locationRequest) error {
	if err := checkHierarchyExists(txn, params.TypeId); err != nil {
		return err
	}
	if params.Parent1Id != nil {
		if err := checkLocationExists(txn, *params.Parent1Id); err != nil {
			return err
		}
	}
	if params.Parent2Id != nil {
		if err := checkLocationExists(txn, *params.Parent2Id); err != nil {
			return err
		}
	}
	return nil
}

func (s *LocationService) Create(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("location", "create").Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params locationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	location := schema.Location{
		Key:       params.normalizedKey(),
		TypeId:    params.TypeId,
		Parent1Id: params.Parent1Id,
		Parent2Id: params.Parent2Id,
		NameFull:  params.NameFull,
		NameAbbr:  params.NameAbbr,
		Comment:   params.Comment,
		DocUrl:    params.DocUrl,
	}
	location.Touch(user.Id, time.Now().UTC())

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := s.checkReferences(txn, &params); err != nil {
			return err
		}

		taken, err := checkLocationNaturalKey(txn, location.Key, location.TypeId, location.Parent1Id, location.Parent2Id, 0)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Key has already been taken for this type and parents")
			return nil
		}

		result := txn.Create(&location)
		if result.Error != nil {
			slog.Error("sql error creating location", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating location: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("created location", "code", logging.ENTITY_CREATE, "location_id", location.Id)

	writeCrudSuccess(w, location.Id, "Location was successfully created.")
}

func (s *LocationService) Update(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("location", "update").Inc()

	locationId, err := utils.URLParamInt(r, "location_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params locationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		location, err := schema.GetLocation(locationId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrLocationNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := s.checkReferences(txn, &params); err != nil {
			return err
		}

		key := params.normalizedKey()
		taken, err := checkLocationNaturalKey(txn, key, params.TypeId, params.Parent1Id, params.Parent2Id, locationId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "Key has already been taken for this type and parents")
			return nil
		}

		location.Key = key
		location.TypeId = params.TypeId
		location.Parent1Id = params.Parent1Id
		location.Parent2Id = params.Parent2Id
		location.NameFull = params.NameFull
		location.NameAbbr = params.NameAbbr
		location.Comment = params.Comment
		location.DocUrl = params.DocUrl
		location.Touch(user.Id, time.Now().UTC())

		result := txn.Save(&location)
		if result.Error != nil {
			slog.Error("sql error updating location", "location_id", locationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating location: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	slog.Info("updated location", "code", logging.ENTITY_UPDATE, "location_id", locationId)

	writeCrudSuccess(w, locationId, "Location was successfully updated.")
}

func (s *LocationService) Delete(w http.ResponseWriter, r *http.Request) {
	entityWritesTotal.WithLabelValues("location", "delete").Inc()

	locationId, err := utils.URLParamInt(r, "location_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var blocked string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkLocationExists(txn, locationId); err != nil {
			return err
		}

		hasChildren, err := schema.LocationHasChildren(locationId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if hasChildren {
			blocked = "Location still has child locations and cannot be deleted"
			return nil
		}

		hasCis, err := schema.LocationHasCis(locationId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if hasCis {
			blocked = "Location still has CIs and cannot be deleted"
			return nil
		}

		result := txn.Delete(&schema.Location{}, "id = ?", locationId)
		if result.Error != nil {
			slog.Error("sql error deleting location", "location_id", locationId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting location: %v", err), GetResponseCode(err))
		return
	}
	if blocked != "" {
		writeCrudErrors(w, []string{blocked})
		return
	}

	slog.Info("deleted location", "code", logging.ENTITY_DELETE, "location_id", locationId)

	writeCrudSuccess(w, locationId, "Location was successfully deleted.")
}
