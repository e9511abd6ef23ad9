package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cmdb_platform/cmdb/schema"
	"cmdb_platform/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	treeQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmdb_tree_queries_total",
		Help: "Number of navigation tree child-list queries served.",
	})

	entityWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmdb_entity_writes_total",
		Help: "Number of entity create/update/delete operations, by kind and operation.",
	}, []string{"kind", "op"})

	seedOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmdb_seed_operations_total",
		Help: "Number of seed reconciliation passes, by operation.",
	}, []string{"op"})
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// CRUD endpoints answer 200 with a success flag in the body; the client keys
// off the flag, not the status code. Occupied-delete conflicts use the
// singular Error field, validation failures the Errors list, and both shapes
// are part of the client contract.
type crudSuccessResponse struct {
	Success bool   `json:"success"`
	Id      int64  `json:"id"`
	Notice  string `json:"notice"`
}

type crudErrorsResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

type crudConflictResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeCrudSuccess(w http.ResponseWriter, id int64, notice string) {
	utils.WriteJsonResponse(w, crudSuccessResponse{Success: true, Id: id, Notice: notice})
}

func writeCrudErrors(w http.ResponseWriter, errs []string) {
	utils.WriteJsonResponse(w, crudErrorsResponse{Success: false, Errors: errs})
}

func writeCrudConflict(w http.ResponseWriter, message string) {
	utils.WriteJsonResponse(w, crudConflictResponse{Success: false, Error: message})
}

func validateRequired(errs []string, field, value string) []string {
	if value == "" {
		return append(errs, fmt.Sprintf("%v cannot be blank", field))
	}
	return errs
}

func validateMaxLen(errs []string, field, value string, maxLen int) []string {
	if len(value) > maxLen {
		return append(errs, fmt.Sprintf("%v is too long (maximum is %d characters)", field, maxLen))
	}
	return errs
}

func checkHierarchyExists(txn *gorm.DB, hierarchyId int64) error {
	if _, err := schema.GetHierarchy(hierarchyId, txn); err != nil {
		if errors.Is(err, schema.ErrHierarchyNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkLocationExists(txn *gorm.DB, locationId int64) error {
	if _, err := schema.GetLocation(locationId, txn, false); err != nil {
		if errors.Is(err, schema.ErrLocationNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkCiClassExists(txn *gorm.DB, ciClassId int64) error {
	if _, err := schema.GetCiClass(ciClassId, txn); err != nil {
		if errors.Is(err, schema.ErrCiClassNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkStatusExists(txn *gorm.DB, statusId int64) error {
	if _, err := schema.GetLifecycleStatus(statusId, txn); err != nil {
		if errors.Is(err, schema.ErrLifecycleStatusNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkCiExists(txn *gorm.DB, ciId int64) error {
	if _, err := schema.GetCi(ciId, txn, false); err != nil {
		if errors.Is(err, schema.ErrCiNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkExternalSystemExists(txn *gorm.DB, extSysId int64) error {
	if _, err := schema.GetExternalSystem(extSysId, txn); err != nil {
		if errors.Is(err, schema.ErrExternalSystemNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkIssueExists(txn *gorm.DB, issueId int64) error {
	if _, err := schema.GetIssue(issueId, txn); err != nil {
		if errors.Is(err, schema.ErrIssueNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkGroupExists(txn *gorm.DB, groupId int64) error {
	if _, err := schema.GetGroup(groupId, txn); err != nil {
		if errors.Is(err, schema.ErrGroupNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}
