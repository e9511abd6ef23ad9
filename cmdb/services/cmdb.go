package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/schema"
	"cmdb_platform/cmdb/seed"
	"cmdb_platform/cmdb/tree"
	"cmdb_platform/utils"
	"cmdb_platform/utils/logging"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// CmdbService serves the navigation tree, the seed reconciliation endpoints,
// the permission settings document and the entity-count summary.
type CmdbService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider

	composer   *tree.Composer
	reconciler *seed.Reconciler
}

func (s *CmdbService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.CapabilityOnly(s.db, auth.ViewCapability)).Get("/tree", s.Tree)
	r.With(auth.CapabilityOnly(s.db, auth.ViewCapability)).Get("/info", s.Info)

	r.Group(func(r chi.Router) {
		r.Use(auth.CapabilityOnly(s.db, auth.EditBasicDataCapability))

		r.Post("/seed_data/add", s.SeedInsert)
		r.Post("/seed_data/remove_unused", s.SeedRemoveUnused)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Get("/settings/permissions", s.GetPermissionSettings)
		r.Put("/settings/permissions", s.UpdatePermissionSettings)
	})

	return r
}

// Tree returns the direct children of the parent token given in the "parent"
// query parameter; absent means the root level. An unknown token yields an
// empty list, never an error.
func (s *CmdbService) Tree(w http.ResponseWriter, r *http.Request) {
	treeQueriesTotal.Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	caps, err := auth.ResolveCapabilities(user, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error resolving capabilities: %v", err), http.StatusInternalServerError)
		return
	}

	token := r.URL.Query().Get("parent")

	nodes, err := s.composer.Children(token, caps)
	if err != nil {
		http.Error(w, fmt.Sprintf("error composing tree: %v", err), http.StatusInternalServerError)
		return
	}

	slog.Info("composed tree level", "code", logging.TREE_QUERY, "parent", token, "nodes", len(nodes))

	utils.WriteJsonResponse(w, nodes)
}

func (s *CmdbService) SeedInsert(w http.ResponseWriter, r *http.Request) {
	seedOperationsTotal.WithLabelValues("insert").Inc()

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats := s.reconciler.InsertAll(user.Id)
	utils.WriteJsonResponse(w, stats)
}

func (s *CmdbService) SeedRemoveUnused(w http.ResponseWriter, r *http.Request) {
	seedOperationsTotal.WithLabelValues("remove_unused").Inc()

	stats := s.reconciler.RemoveUnused()
	utils.WriteJsonResponse(w, stats)
}

func (s *CmdbService) GetPermissionSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := auth.LoadPermissionSettings(s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading permission settings: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, settings)
}

func (s *CmdbService) UpdatePermissionSettings(w http.ResponseWriter, r *http.Request) {
	var params auth.PermissionSettings
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		for _, groupId := range append(append(append([]int64{}, params.ViewCmdbGroups...), params.EditCmdbGroups...), params.EditBasicDataGroups...) {
			if err := checkGroupExists(txn, groupId); err != nil {
				return err
			}
		}

		if err := auth.SavePermissionSettings(txn, params); err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating permission settings: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type InfoResponse struct {
	Locations       int64 `json:"locations"`
	HierarchyLevels int64 `json:"hierarchy_levels"`
	CiClasses       int64 `json:"ci_classes"`
	Cis             int64 `json:"cis"`
	LifecycleStatus int64 `json:"lifecycle_statuses"`
	ExternalSystems int64 `json:"external_systems"`
	IssueLinks      int64 `json:"issue_links"`
	ExternalRefs    int64 `json:"external_refs"`
}

// Info returns entity counts for the settings info screen.
func (s *CmdbService) Info(w http.ResponseWriter, r *http.Request) {
	var res InfoResponse

	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&schema.Location{}, &res.Locations},
		{&schema.LocationHierarchy{}, &res.HierarchyLevels},
		{&schema.CiClass{}, &res.CiClasses},
		{&schema.Ci{}, &res.Cis},
		{&schema.LifecycleStatus{}, &res.LifecycleStatus},
		{&schema.ExternalSystem{}, &res.ExternalSystems},
		{&schema.CiIssue{}, &res.IssueLinks},
		{&schema.CiExternalRef{}, &res.ExternalRefs},
	}

	for _, c := range counts {
		result := s.db.Model(c.model).Count(c.dest)
		if result.Error != nil {
			slog.Error("sql error counting entities", "error", result.Error)
			http.Error(w, fmt.Sprintf("error counting entities: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJsonResponse(w, res)
}
