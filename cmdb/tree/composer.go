package tree

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/schema"

	"gorm.io/gorm"
)

func idToken(prefix string, id int64) string {
	return fmt.Sprintf("%v_%d", prefix, id)
}

type tokenKind int

const (
	tokenRoot tokenKind = iota
	tokenSettings
	tokenBasicData
	tokenLocationHierarchy
	tokenCiClasses
	tokenLifecycleStatuses
	tokenExternalSystems
	tokenCisByClass
	tokenCiClassForCi
	tokenLocationCis
	tokenCiClass
	tokenLocation
	tokenUnknown
)

type parsedToken struct {
	kind tokenKind
	id   int64
}

var literalTokens = map[string]tokenKind{
	"":                   tokenRoot,
	"settings":           tokenSettings,
	"basic_data":         tokenBasicData,
	"location_hierarchy": tokenLocationHierarchy,
	"ci_classes":         tokenCiClasses,
	"lifecycle_statuses": tokenLifecycleStatuses,
	"external_systems":   tokenExternalSystems,
	"cis_by_class":       tokenCisByClass,
}

// prefixTokens is checked in order; ci_class_for_ci_ must precede ci_class_
// since the latter is a prefix of the former.
var prefixTokens = []struct {
	prefix string
	kind   tokenKind
}{
	{"ci_class_for_ci_", tokenCiClassForCi},
	{"location_cis_", tokenLocationCis},
	{"ci_class_", tokenCiClass},
}

// parseToken classifies a parent token: exact literal first, then known id
// prefixes, then bare integer meaning location id. Anything else is unknown
// and yields an empty child list downstream, never an error.
func parseToken(token string) parsedToken {
	if kind, ok := literalTokens[token]; ok {
		return parsedToken{kind: kind}
	}

	for _, p := range prefixTokens {
		if strings.HasPrefix(token, p.prefix) {
			id, err := strconv.ParseInt(token[len(p.prefix):], 10, 64)
			if err != nil {
				return parsedToken{kind: tokenUnknown}
			}
			return parsedToken{kind: p.kind, id: id}
		}
	}

	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return parsedToken{kind: tokenUnknown}
	}
	return parsedToken{kind: tokenLocation, id: id}
}

// Composer assembles the lazily expanded navigation tree. Every call resolves
// exactly one level; subtrees are never loaded eagerly.
type Composer struct {
	db *gorm.DB
}

func NewComposer(db *gorm.DB) *Composer {
	return &Composer{db: db}
}

// Children returns the ordered direct children of the given parent token. The
// capability set filters which action nodes and folders appear; unauthorized
// callers silently see fewer nodes.
func (c *Composer) Children(token string, caps auth.Capabilities) ([]Node, error) {
	parsed := parseToken(token)

	switch parsed.kind {
	case tokenRoot:
		return c.rootNodes(caps)
	case tokenSettings:
		return c.settingsNodes(caps), nil
	case tokenBasicData:
		return c.basicDataNodes(), nil
	case tokenLocationHierarchy:
		return c.hierarchyNodes(caps)
	case tokenCiClasses:
		return c.ciClassNodes(caps)
	case tokenLifecycleStatuses:
		return c.lifecycleStatusNodes(caps)
	case tokenExternalSystems:
		return c.externalSystemNodes(caps)
	case tokenCisByClass:
		return c.cisByClassNodes(caps)
	case tokenCiClassForCi:
		return c.ciClassChildren(parsed.id, true)
	case tokenLocationCis:
		return c.locationCiNodes(parsed.id)
	case tokenCiClass:
		return c.ciClassChildren(parsed.id, false)
	case tokenLocation:
		return c.locationChildren(parsed.id)
	default:
		return []Node{}, nil
	}
}

func (c *Composer) rootNodes(caps auth.Capabilities) ([]Node, error) {
	nodes := make([]Node, 0)

	if caps.Edit {
		nodes = append(nodes, actionNode("new", "New location", "new"))
	}

	var locations []schema.Location
	result := c.db.Preload("Type").
		Where("parent1_id IS NULL AND parent2_id IS NULL").
		Order("name_abbr").
		Find(&locations)
	if result.Error != nil {
		slog.Error("sql error listing root locations", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, location := range locations {
		node, err := c.buildLocationNode(location)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	nodes = append(nodes, folderNode("cis_by_class", "CIs by class"))

	if caps.EditBasicData {
		nodes = append(nodes, folderNode("basic_data", "Basic data"))
		settings := folderNode("settings", "Settings")
		settings.Icon = IconSettings
		nodes = append(nodes, settings)
	}

	return nodes, nil
}

func (c *Composer) settingsNodes(caps auth.Capabilities) []Node {
	nodes := make([]Node, 0)
	if caps.EditBasicData {
		nodes = append(nodes, Node{Id: "seed_data", Text: "Seed data", Icon: IconPackage, Children: false, Type: "seed_data"})
	}
	nodes = append(nodes, Node{Id: "info", Text: "Info", Icon: IconHelp, Children: false, Type: "info"})
	return nodes
}

func (c *Composer) basicDataNodes() []Node {
	return []Node{
		folderNode("location_hierarchy", "Location hierarchy"),
		folderNode("ci_classes", "CI classes"),
		folderNode("lifecycle_statuses", "Lifecycle statuses"),
		folderNode("external_systems", "External systems"),
	}
}

func (c *Composer) hierarchyNodes(caps auth.Capabilities) ([]Node, error) {
	nodes := make([]Node, 0)
	if caps.EditBasicData {
		nodes = append(nodes, actionNode("new_hierarchy", "New hierarchy level", "new_hierarchy"))
	}

	var levels []schema.LocationHierarchy
	result := c.db.Order("level").Find(&levels)
	if result.Error != nil {
		slog.Error("sql error listing hierarchy levels", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, level := range levels {
		nodes = append(nodes, hierarchyNode(level))
	}
	return nodes, nil
}

func (c *Composer) ciClassNodes(caps auth.Capabilities) ([]Node, error) {
	nodes := make([]Node, 0)
	if caps.EditBasicData {
		nodes = append(nodes, actionNode("new_ci_class", "New CI class", "new_ci_class"))
	}

	classNodes, err := c.rootCiClassNodes(false)
	if err != nil {
		return nil, err
	}
	return append(nodes, classNodes...), nil
}

func (c *Composer) cisByClassNodes(caps auth.Capabilities) ([]Node, error) {
	nodes := make([]Node, 0)
	if caps.Edit {
		nodes = append(nodes, actionNode("new_ci", "New CI", "new_ci"))
	}

	classNodes, err := c.rootCiClassNodes(true)
	if err != nil {
		return nil, err
	}
	return append(nodes, classNodes...), nil
}

func (c *Composer) rootCiClassNodes(forCi bool) ([]Node, error) {
	var classes []schema.CiClass
	result := c.db.Where("subclass_of_id IS NULL").Order("sort, name_abbr").Find(&classes)
	if result.Error != nil {
		slog.Error("sql error listing root ci classes", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	nodes := make([]Node, 0, len(classes))
	for _, ciClass := range classes {
		node, err := c.buildCiClassNode(ciClass, forCi)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (c *Composer) lifecycleStatusNodes(caps auth.Capabilities) ([]Node, error) {
	nodes := make([]Node, 0)
	if caps.EditBasicData {
		nodes = append(nodes, actionNode("new_lifecycle_status", "New lifecycle status", "new_lifecycle_status"))
	}

	var statuses []schema.LifecycleStatus
	result := c.db.Order("name_abbr").Find(&statuses)
	if result.Error != nil {
		slog.Error("sql error listing lifecycle statuses", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, status := range statuses {
		nodes = append(nodes, lifecycleStatusNode(status))
	}
	return nodes, nil
}

func (c *Composer) externalSystemNodes(caps auth.Capabilities) ([]Node, error) {
	nodes := make([]Node, 0)
	if caps.EditBasicData {
		nodes = append(nodes, actionNode("new_ext_sys", "New external system", "new_ext_sys"))
	}

	var systems []schema.ExternalSystem
	result := c.db.Order("name_abbr").Find(&systems)
	if result.Error != nil {
		slog.Error("sql error listing external systems", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, extSys := range systems {
		nodes = append(nodes, extSysNode(extSys))
	}
	return nodes, nil
}

// ciClassChildren lists the subclasses of a class, plus the class's CIs when
// rendering in for-ci mode. An unknown class id yields an empty list.
func (c *Composer) ciClassChildren(ciClassId int64, forCi bool) ([]Node, error) {
	nodes := make([]Node, 0)

	var subclasses []schema.CiClass
	result := c.db.Where("subclass_of_id = ?", ciClassId).Order("sort, name_abbr").Find(&subclasses)
	if result.Error != nil {
		slog.Error("sql error listing subclasses", "ci_class_id", ciClassId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, subclass := range subclasses {
		node, err := c.buildCiClassNode(subclass, forCi)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if !forCi {
		return nodes, nil
	}

	var cis []schema.Ci
	result = c.db.Preload("CiClass").Where("ci_class_id = ?", ciClassId).Order("name_abbr").Find(&cis)
	if result.Error != nil {
		slog.Error("sql error listing cis of class", "ci_class_id", ciClassId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, ci := range cis {
		nodes = append(nodes, ciNode(ci))
	}
	return nodes, nil
}

func (c *Composer) locationCiNodes(locationId int64) ([]Node, error) {
	var cis []schema.Ci
	result := c.db.Preload("CiClass").Where("location_id = ?", locationId).Order("name_abbr").Find(&cis)
	if result.Error != nil {
		slog.Error("sql error listing cis at location", "location_id", locationId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	nodes := make([]Node, 0, len(cis))
	for _, ci := range cis {
		nodes = append(nodes, ciNode(ci))
	}
	return nodes, nil
}

// locationChildren lists the CIs subfolder (when the location holds CIs) plus
// the union of locations referencing this one through either parent pointer.
// An unknown location id yields an empty list.
func (c *Composer) locationChildren(locationId int64) ([]Node, error) {
	location, err := schema.GetLocation(locationId, c.db, false)
	if err != nil {
		if err == schema.ErrLocationNotFound {
			return []Node{}, nil
		}
		return nil, err
	}

	nodes := make([]Node, 0)

	hasCis, err := schema.LocationHasCis(location.Id, c.db)
	if err != nil {
		return nil, err
	}
	if hasCis {
		nodes = append(nodes, locationCisNode(location))
	}

	var children []schema.Location
	result := c.db.Preload("Type").
		Where("parent1_id = ? OR parent2_id = ?", location.Id, location.Id).
		Order("name_abbr").
		Find(&children)
	if result.Error != nil {
		slog.Error("sql error listing child locations", "location_id", locationId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, child := range children {
		node, err := c.buildLocationNode(child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// CiPicker renders the for-ci class tree for selection dialogs, filtering out
// the given CI ids. A nil parent means the root classes.
func (c *Composer) CiPicker(parentClassId *int64, excludeCiIds []int64) ([]Node, error) {
	if parentClassId == nil {
		return c.rootCiClassNodes(true)
	}

	var subclasses []schema.CiClass
	result := c.db.Where("subclass_of_id = ?", *parentClassId).Order("sort, name_abbr").Find(&subclasses)
	if result.Error != nil {
		slog.Error("sql error listing pickable subclasses", "ci_class_id", *parentClassId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	nodes := make([]Node, 0, len(subclasses))
	for _, subclass := range subclasses {
		node, err := c.buildCiClassNode(subclass, true)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	query := c.db.Preload("CiClass").Where("ci_class_id = ?", *parentClassId)
	if len(excludeCiIds) > 0 {
		query = query.Where("id NOT IN ?", excludeCiIds)
	}

	var cis []schema.Ci
	result = query.Order("name_abbr").Find(&cis)
	if result.Error != nil {
		slog.Error("sql error listing pickable cis", "ci_class_id", *parentClassId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	for _, ci := range cis {
		nodes = append(nodes, ciNode(ci))
	}
	return nodes, nil
}

func (c *Composer) buildLocationNode(location schema.Location) (Node, error) {
	hasChildren, err := schema.LocationHasChildren(location.Id, c.db)
	if err != nil {
		return Node{}, err
	}
	if !hasChildren {
		hasChildren, err = schema.LocationHasCis(location.Id, c.db)
		if err != nil {
			return Node{}, err
		}
	}
	return locationNode(location, hasChildren), nil
}

func (c *Composer) buildCiClassNode(ciClass schema.CiClass, forCi bool) (Node, error) {
	hasChildren, err := schema.CiClassHasSubclasses(ciClass.Id, c.db)
	if err != nil {
		return Node{}, err
	}
	if forCi && !hasChildren {
		hasChildren, err = schema.CiClassHasCis(ciClass.Id, c.db)
		if err != nil {
			return Node{}, err
		}
	}
	return ciClassNode(ciClass, hasChildren, forCi), nil
}
