package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/schema"
	"cmdb_platform/cmdb/tree"
	"cmdb_platform/utils"
	"cmdb_platform/utils/logging"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// IssueService is the narrow tracker surface the CMDB links against: issues
// can be created and listed so that CI links and their journal mirror are
// exercisable without an external tracker.
type IssueService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider

	composer *tree.Composer
}

func (s *IssueService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.Create)
	r.Get("/list", s.List)

	r.Route("/{issue_id}", func(r chi.Router) {
		r.Get("/journal", s.ListJournal)

		r.Group(func(r chi.Router) {
			r.Use(auth.CapabilityOnly(s.db, auth.ViewCapability))

			r.Get("/cis", s.ListCis)
			r.Get("/cis/available", s.AvailableCis)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.CapabilityOnly(s.db, auth.EditCapability))

			r.Post("/cis", s.LinkCi)
			r.Delete("/cis/{ci_id}", s.UnlinkCi)
		})
	})

	return r
}

type createIssueRequest struct {
	Subject string `json:"subject"`
}

type createIssueResponse struct {
	IssueId int64 `json:"issue_id"`
}

func (s *IssueService) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createIssueRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Subject == "" {
		http.Error(w, "Issue subject must be specified", http.StatusBadRequest)
		return
	}

	issue := schema.Issue{Subject: params.Subject, CreatedBy: &user.Id, CreatedOn: time.Now().UTC()}
	result := s.db.Create(&issue)
	if result.Error != nil {
		slog.Error("sql error creating issue", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating issue: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, createIssueResponse{IssueId: issue.Id})
}

func (s *IssueService) List(w http.ResponseWriter, r *http.Request) {
	var issues []schema.Issue
	result := s.db.Order("id").Find(&issues)
	if result.Error != nil {
		slog.Error("sql error listing issues", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing issues: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, issues)
}

func (s *IssueService) ListJournal(w http.ResponseWriter, r *http.Request) {
	issueId, err := utils.URLParamInt(r, "issue_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkIssueExists(s.db, issueId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var journals []schema.Journal
	result := s.db.Where("issue_id = ?", issueId).Order("id").Find(&journals)
	if result.Error != nil {
		slog.Error("sql error listing issue journal", "issue_id", issueId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing journal: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, journals)
}

type IssueCiInfo struct {
	CiId  int64  `json:"ci_id"`
	Label string `json:"label"`
}

func (s *IssueService) ListCis(w http.ResponseWriter, r *http.Request) {
	issueId, err := utils.URLParamInt(r, "issue_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkIssueExists(s.db, issueId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var links []schema.CiIssue
	result := s.db.Preload("Ci").Preload("Ci.CiClass").Where("issue_id = ?", issueId).Find(&links)
	if result.Error != nil {
		slog.Error("sql error listing issue cis", "issue_id", issueId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing issue cis: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]IssueCiInfo, 0, len(links))
	for _, link := range links {
		info := IssueCiInfo{CiId: link.CiId}
		if link.Ci != nil {
			info.Label = link.Ci.TreeLabel()
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

// AvailableCis serves the CI picker: the for-ci class tree with CIs already
// linked to the issue filtered out. An absent parent_id means root classes.
func (s *IssueService) AvailableCis(w http.ResponseWriter, r *http.Request) {
	issueId, err := utils.URLParamInt(r, "issue_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := checkIssueExists(s.db, issueId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	var parentClassId *int64
	if param := r.URL.Query().Get("parent_id"); param != "" {
		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid parent_id '%v': %v", param, err), http.StatusBadRequest)
			return
		}
		parentClassId = &id
	}

	var links []schema.CiIssue
	result := s.db.Where("issue_id = ?", issueId).Find(&links)
	if result.Error != nil {
		slog.Error("sql error listing issue ci links", "issue_id", issueId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing linked cis: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	linkedCiIds := make([]int64, 0, len(links))
	for _, link := range links {
		linkedCiIds = append(linkedCiIds, link.CiId)
	}

	nodes, err := s.composer.CiPicker(parentClassId, linkedCiIds)
	if err != nil {
		http.Error(w, fmt.Sprintf("error composing ci picker: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, nodes)
}

type linkCiRequest struct {
	CiId int64 `json:"ci_id"`
}

// LinkCi joins a CI to an issue and mirrors the change into the issue's
// journal as a structured relation entry.
func (s *IssueService) LinkCi(w http.ResponseWriter, r *http.Request) {
	issueId, err := utils.URLParamInt(r, "issue_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params linkCiRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkIssueExists(txn, issueId); err != nil {
			return err
		}
		if err := checkCiExists(txn, params.CiId); err != nil {
			return err
		}

		linked, err := schema.Exists(txn, &schema.CiIssue{}, "ci_id = ? AND issue_id = ?", params.CiId, issueId)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if linked {
			return CodedError(fmt.Errorf("ci %v is already linked to issue %v", params.CiId, issueId), http.StatusConflict)
		}

		now := time.Now().UTC()
		result := txn.Create(&schema.CiIssue{CiId: params.CiId, IssueId: issueId, CreatedBy: &user.Id, CreatedOn: now})
		if result.Error != nil {
			slog.Error("sql error creating ci issue link", "issue_id", issueId, "ci_id", params.CiId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		value := strconv.FormatInt(params.CiId, 10)
		journal := schema.Journal{
			IssueId:   issueId,
			UserId:    &user.Id,
			Property:  "relation",
			PropKey:   "ci",
			Value:     &value,
			CreatedOn: now,
		}
		result = txn.Create(&journal)
		if result.Error != nil {
			slog.Error("sql error creating link journal entry", "issue_id", issueId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error linking ci to issue: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("linked ci to issue", "code", logging.ISSUE_LINK, "issue_id", issueId, "ci_id", params.CiId)

	utils.WriteSuccess(w)
}

func (s *IssueService) UnlinkCi(w http.ResponseWriter, r *http.Request) {
	issueId, err := utils.URLParamInt(r, "issue_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
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

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkIssueExists(txn, issueId); err != nil {
			return err
		}

		result := txn.Delete(&schema.CiIssue{CiId: ciId, IssueId: issueId})
		if result.Error != nil {
			slog.Error("sql error deleting ci issue link", "issue_id", issueId, "ci_id", ciId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("ci %v is not linked to issue %v", ciId, issueId), http.StatusNotFound)
		}

		oldValue := strconv.FormatInt(ciId, 10)
		journal := schema.Journal{
			IssueId:   issueId,
			UserId:    &user.Id,
			Property:  "relation",
			PropKey:   "ci",
			OldValue:  &oldValue,
			CreatedOn: time.Now().UTC(),
		}
		result = txn.Create(&journal)
		if result.Error != nil {
			slog.Error("sql error creating unlink journal entry", "issue_id", issueId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error unlinking ci from issue: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("unlinked ci from issue", "code", logging.ISSUE_UNLINK, "issue_id", issueId, "ci_id", ciId)

	utils.WriteSuccess(w)
}
