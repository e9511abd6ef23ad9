package services

import (
	"log"
	"net/http"
	"os"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/seed"
	"cmdb_platform/cmdb/tree"
	"cmdb_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type CmdbPlatform struct {
	user            UserService
	group           GroupService
	cmdb            CmdbService
	hierarchy       HierarchyService
	location        LocationService
	ciClass         CiClassService
	lifecycleStatus LifecycleStatusService
	ci              CiService
	extSys          ExternalSystemService
	issue           IssueService

	db *gorm.DB
}

func NewCmdbPlatform(db *gorm.DB, userAuth auth.IdentityProvider) CmdbPlatform {
	composer := tree.NewComposer(db)

	return CmdbPlatform{
		user:  UserService{db: db, userAuth: userAuth},
		group: GroupService{db: db, userAuth: userAuth},
		cmdb: CmdbService{
			db:         db,
			userAuth:   userAuth,
			composer:   composer,
			reconciler: seed.NewReconciler(db),
		},
		hierarchy:       HierarchyService{db: db, userAuth: userAuth},
		location:        LocationService{db: db, userAuth: userAuth},
		ciClass:         CiClassService{db: db, userAuth: userAuth},
		lifecycleStatus: LifecycleStatusService{db: db, userAuth: userAuth},
		ci:              CiService{db: db, userAuth: userAuth},
		extSys:          ExternalSystemService{db: db, userAuth: userAuth},
		issue:           IssueService{db: db, userAuth: userAuth, composer: composer},
		db:              db,
	}
}

func (m *CmdbPlatform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", m.user.Routes())
	r.Mount("/group", m.group.Routes())
	r.Mount("/cmdb", m.cmdb.Routes())
	r.Mount("/hierarchy_levels", m.hierarchy.Routes())
	r.Mount("/locations", m.location.Routes())
	r.Mount("/ci_classes", m.ciClass.Routes())
	r.Mount("/lifecycle_statuses", m.lifecycleStatus.Routes())
	r.Mount("/cis", m.ci.Routes())
	r.Mount("/external_systems", m.extSys.Routes())
	r.Mount("/issues", m.issue.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
