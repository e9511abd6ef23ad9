package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Audit carries the creator/updater bookkeeping shared by all CMDB entities.
// CreatedBy/CreatedOn are set once on insert, UpdatedBy/UpdatedOn on every save.
type Audit struct {
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedOn time.Time  `json:"created_on"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	UpdatedOn time.Time  `json:"updated_on"`
}

func (a *Audit) Touch(actor uuid.UUID, now time.Time) {
	if a.CreatedBy == nil {
		a.CreatedBy = &actor
		a.CreatedOn = now
	}
	a.UpdatedBy = &actor
	a.UpdatedOn = now
}

// LocationHierarchy is one rung of the location ladder (building, floor, ...).
// Level defines a total ordering that is independent of the location graph.
type LocationHierarchy struct {
	Id int64 `gorm:"primaryKey" json:"id"`

	Key   string `gorm:"size:50;unique;not null" json:"key"`
	Level int    `gorm:"unique;not null" json:"level"`

	NameFull string `gorm:"size:120" json:"name_full"`
	NameAbbr string `gorm:"size:15" json:"name_abbr"`
	Comment  string `gorm:"size:10000" json:"comment"`
	DocUrl   string `gorm:"size:1500" json:"doc_url"`

	Audit
}

func (h *LocationHierarchy) DisplayName() string {
	if h.NameAbbr != "" {
		return h.NameAbbr
	}
	if h.NameFull != "" {
		return h.NameFull
	}
	return h.Key
}

// Location sits in a DAG fragment: every location may have up to two
// independent parents. Root locations have both parents absent.
type Location struct {
	Id int64 `gorm:"primaryKey" json:"id"`

	// Nil rather than empty so the (key, type, parent1, parent2) uniqueness
	// check never trips over empty strings.
	Key *string `gorm:"size:50" json:"key,omitempty"`

	TypeId int64              `gorm:"not null" json:"type_id"`
	Type   *LocationHierarchy `gorm:"foreignKey:TypeId" json:"-"`

	Parent1Id *int64 `json:"parent1_id,omitempty"`
	Parent2Id *int64 `json:"parent2_id,omitempty"`

	NameFull string `gorm:"size:120" json:"name_full"`
	NameAbbr string `gorm:"size:15" json:"name_abbr"`
	Comment  string `gorm:"size:10000" json:"comment"`
	DocUrl   string `gorm:"size:1500" json:"doc_url"`

	Audit
}

func (l *Location) DisplayName() string {
	if l.NameAbbr != "" {
		return l.NameAbbr
	}
	if l.NameFull != "" {
		return l.NameFull
	}
	if l.Key != nil && *l.Key != "" {
		return *l.Key
	}
	return fmt.Sprintf("Location #%d", l.Id)
}

// TreeLabel prefixes the name with the hierarchy-level abbreviation, matching
// the navigation tree's "Bld.: HQ" style. Requires Type to be preloaded.
func (l *Location) TreeLabel() string {
	prefix := ""
	if l.Type != nil {
		prefix = l.Type.NameAbbr
	}
	return fmt.Sprintf("%v: %v", prefix, l.DisplayName())
}

// CiClass forms a single-parent tree via SubclassOfId.
type CiClass struct {
	Id int64 `gorm:"primaryKey" json:"id"`

	Key  string `gorm:"size:50;unique;not null" json:"key"`
	Sort int    `json:"sort"`

	SubclassOfId *int64   `json:"subclass_of_id,omitempty"`
	SubclassOf   *CiClass `gorm:"foreignKey:SubclassOfId" json:"-"`

	NameFull string `gorm:"size:120" json:"name_full"`
	NameAbbr string `gorm:"size:15" json:"name_abbr"`
	Comment  string `gorm:"size:10000" json:"comment"`
	DocUrl   string `gorm:"size:1500" json:"doc_url"`

	Audit
}

func (c *CiClass) DisplayName() string {
	if c.NameAbbr != "" {
		return c.NameAbbr
	}
	if c.NameFull != "" {
		return c.NameFull
	}
	return c.Key
}

// LifecycleStatus is a flat catalog entry (planned, active, disposed, ...).
type LifecycleStatus struct {
	Id int64 `gorm:"primaryKey" json:"id"`

	Key string `gorm:"size:50;unique;not null" json:"key"`

	NameFull string `gorm:"size:120" json:"name_full"`
	NameAbbr string `gorm:"size:15" json:"name_abbr"`
	Comment  string `gorm:"size:10000" json:"comment"`
	DocUrl   string `gorm:"size:1500" json:"doc_url"`

	Audit
}

func (s *LifecycleStatus) DisplayName() string {
	if s.NameAbbr != "" {
		return s.NameAbbr
	}
	if s.NameFull != "" {
		return s.NameFull
	}
	return s.Key
}

// Ci is a configuration item: the asset record itself.
type Ci struct {
	Id int64 `gorm:"primaryKey" json:"id"`

	CiClassId int64    `gorm:"not null" json:"ci_class_id"`
	CiClass   *CiClass `gorm:"foreignKey:CiClassId" json:"-"`

	LocationId *int64           `json:"location_id,omitempty"`
	Location   *Location        `gorm:"foreignKey:LocationId" json:"-"`
	StatusId   *int64           `json:"status_id,omitempty"`
	Status     *LifecycleStatus `gorm:"foreignKey:StatusId" json:"-"`

	NameFull  string `gorm:"size:120" json:"name_full"`
	NameAbbr  string `gorm:"size:50" json:"name_abbr"`
	Comment   string `gorm:"size:10000" json:"comment"`
	DocUrl    string `gorm:"size:1500" json:"doc_url"`
	Producer  string `gorm:"size:100" json:"producer"`
	Model     string `gorm:"size:100" json:"model"`
	TagSerial string `gorm:"size:40" json:"tag_serial"`

	Audit
}

func (c *Ci) DisplayName() string {
	if c.NameAbbr != "" {
		return c.NameAbbr
	}
	if c.NameFull != "" {
		return c.NameFull
	}
	return fmt.Sprintf("CI #%d", c.Id)
}

// TreeLabel appends the class abbreviation, e.g. "WEB01 (SRV)". Requires
// CiClass to be preloaded; without it the label is just the display name.
func (c *Ci) TreeLabel() string {
	label := c.DisplayName()
	if c.CiClass != nil && c.CiClass.NameAbbr != "" {
		label += fmt.Sprintf(" (%v)", c.CiClass.NameAbbr)
	}
	return label
}

// ExternalSystem is a third-party integration endpoint. Each system is owned
// by exactly one responsible user account.
type ExternalSystem struct {
	Id int64 `gorm:"primaryKey" json:"id"`

	ResponsibleUserId uuid.UUID `gorm:"type:uuid;unique;not null" json:"responsible_user_id"`

	DefaultLocationId *int64 `json:"default_location_id,omitempty"`

	// Template with a ${key_ext} placeholder for per-CI deep links.
	CiDetailUrl string `gorm:"size:1500" json:"ci_detail_url"`

	NameFull string `gorm:"size:120" json:"name_full"`
	NameAbbr string `gorm:"size:50" json:"name_abbr"`
	Comment  string `gorm:"size:10000" json:"comment"`
	DocUrl   string `gorm:"size:1500" json:"doc_url"`

	Audit
}

func (e *ExternalSystem) DisplayName() string {
	if e.NameAbbr != "" {
		return e.NameAbbr
	}
	if e.NameFull != "" {
		return e.NameFull
	}
	return fmt.Sprintf("ExtSys #%d", e.Id)
}

// BuildCiDetailUrl expands the deep-link template for one external key.
// Returns "" if either the template or the key is missing.
func (e *ExternalSystem) BuildCiDetailUrl(extKey string) string {
	if e.CiDetailUrl == "" || extKey == "" {
		return ""
	}
	return strings.ReplaceAll(e.CiDetailUrl, "${key_ext}", extKey)
}

// CiIssue links a CI to a tracker issue. Creation and removal are mirrored
// into the issue's journal.
type CiIssue struct {
	CiId    int64 `gorm:"primaryKey" json:"ci_id"`
	IssueId int64 `gorm:"primaryKey" json:"issue_id"`

	Ci    *Ci    `gorm:"foreignKey:CiId" json:"-"`
	Issue *Issue `gorm:"foreignKey:IssueId" json:"-"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedOn time.Time  `json:"created_on"`
}

// CiExternalRef cross-references a CI with its identity in an external system.
type CiExternalRef struct {
	CiId     int64  `gorm:"primaryKey" json:"ci_id"`
	ExtSysId int64  `gorm:"primaryKey" json:"ext_sys_id"`
	ExtKey   string `gorm:"primaryKey;size:50" json:"ext_key"`

	Ci     *Ci             `gorm:"foreignKey:CiId" json:"-"`
	ExtSys *ExternalSystem `gorm:"foreignKey:ExtSysId" json:"-"`
}

// Issue is the minimal tracker surface the CMDB links against.
type Issue struct {
	Id int64 `gorm:"primaryKey" json:"id"`

	Subject string `gorm:"size:255;not null" json:"subject"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedOn time.Time  `json:"created_on"`
}

// Journal is one structured change record in an issue's history.
type Journal struct {
	Id      int64 `gorm:"primaryKey" json:"id"`
	IssueId int64 `gorm:"not null;index" json:"issue_id"`

	UserId *uuid.UUID `gorm:"type:uuid" json:"user_id,omitempty"`
	Notes  string     `json:"notes"`

	Property string  `gorm:"size:30" json:"property"`
	PropKey  string  `gorm:"size:30" json:"prop_key"`
	Value    *string `gorm:"size:255" json:"value,omitempty"`
	OldValue *string `gorm:"size:255" json:"old_value,omitempty"`

	CreatedOn time.Time `json:"created_on"`
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	Groups []UserGroup `gorm:"constraint:OnDelete:CASCADE"`
}

type Group struct {
	Id   int64  `gorm:"primaryKey"`
	Name string `gorm:"unique;size:100;not null"`
}

type UserGroup struct {
	UserId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupId int64     `gorm:"primaryKey"`

	User  *User  `gorm:"constraint:OnDelete:CASCADE"`
	Group *Group `gorm:"constraint:OnDelete:CASCADE"`
}

// Setting is a single key/value configuration document (JSON value).
type Setting struct {
	Key   string `gorm:"primaryKey;size:100"`
	Value string
}

// AllTables lists every model for AutoMigrate, dependency roots first.
func AllTables() []interface{} {
	return []interface{}{
		&User{}, &Group{}, &UserGroup{}, &Setting{},
		&LocationHierarchy{}, &Location{},
		&CiClass{}, &LifecycleStatus{}, &Ci{},
		&ExternalSystem{}, &CiExternalRef{},
		&Issue{}, &Journal{}, &CiIssue{},
	}
}
