package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"cmdb_platform/cmdb/schema"
	"cmdb_platform/utils"

	"gorm.io/gorm"
)

type externalRefRequest struct {
	ExtSysId int64  `json:"ext_sys_id"`
	ExtKey   string `json:"ext_key"`
}

func (p *externalRefRequest) validate() []string {
	errs := []string{}
	if p.ExtSysId == 0 {
		errs = append(errs, "External system cannot be blank")
	}
	errs = validateRequired(errs, "External key", p.ExtKey)
	errs = validateMaxLen(errs, "External key", p.ExtKey, 50)
	return errs
}

type ExternalRefInfo struct {
	CiId     int64  `json:"ci_id"`
	ExtSysId int64  `json:"ext_sys_id"`
	ExtSys   string `json:"ext_sys"`
	ExtKey   string `json:"ext_key"`

	// DetailUrl is the deep link built from the external system's template,
	// empty when the system has no template.
	DetailUrl string `json:"detail_url"`
}

func (s *CiService) ListExternalRefs(w http.ResponseWriter, r *http.Request) {
	ciId, err := utils.URLParamInt(r, "ci_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkCiExists(s.db, ciId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var refs []schema.CiExternalRef
	result := s.db.Preload("ExtSys").Where("ci_id = ?", ciId).Order("ext_sys_id, ext_key").Find(&refs)
	if result.Error != nil {
		slog.Error("sql error listing ci external refs", "ci_id", ciId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing external refs: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ExternalRefInfo, 0, len(refs))
	for _, ref := range refs {
		info := ExternalRefInfo{CiId: ref.CiId, ExtSysId: ref.ExtSysId, ExtKey: ref.ExtKey}
		if ref.ExtSys != nil {
			info.ExtSys = ref.ExtSys.DisplayName()
			info.DetailUrl = ref.ExtSys.BuildCiDetailUrl(ref.ExtKey)
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *CiService) AddExternalRef(w http.ResponseWriter, r *http.Request) {
	ciId, err := utils.URLParamInt(r, "ci_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params externalRefRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if errs := params.validate(); len(errs) > 0 {
		writeCrudErrors(w, errs)
		return
	}

	var validationErrs []string
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkCiExists(txn, ciId); err != nil {
			return err
		}
		if err := checkExternalSystemExists(txn, params.ExtSysId); err != nil {
			return err
		}

		taken, err := schema.Exists(txn, &schema.CiExternalRef{}, "ci_id = ? AND ext_sys_id = ? AND ext_key = ?", ciId, params.ExtSysId, params.ExtKey)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if taken {
			validationErrs = append(validationErrs, "External key has already been taken for this CI and external system")
			return nil
		}

		result := txn.Create(&schema.CiExternalRef{CiId: ciId, ExtSysId: params.ExtSysId, ExtKey: params.ExtKey})
		if result.Error != nil {
			slog.Error("sql error creating ci external ref", "ci_id", ciId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding external ref: %v", err), GetResponseCode(err))
		return
	}
	if len(validationErrs) > 0 {
		writeCrudErrors(w, validationErrs)
		return
	}

	writeCrudSuccess(w, ciId, "External reference was successfully created.")
}

func (s *CiService) RemoveExternalRef(w http.ResponseWriter, r *http.Request) {
	ciId, err := utils.URLParamInt(r, "ci_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	extSysId, err := utils.URLParamInt(r, "ext_sys_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	extKey, err := utils.URLParam(r, "ext_key")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkCiExists(txn, ciId); err != nil {
			return err
		}

		result := txn.Delete(&schema.CiExternalRef{}, "ci_id = ? AND ext_sys_id = ? AND ext_key = ?", ciId, extSysId, extKey)
		if result.Error != nil {
			slog.Error("sql error deleting ci external ref", "ci_id", ciId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("no external reference for system %v with key '%v'", extSysId, extKey), http.StatusNotFound)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing external ref: %v", err), GetResponseCode(err))
		return
	}

	writeCrudSuccess(w, ciId, "External reference was successfully deleted.")
}
