package seed

// Kind names key the reconciliation statistics maps.
type Kind string

const (
	KindLocationHierarchy Kind = "location_hierarchy"
	KindLifecycleStatus   Kind = "lifecycle_status"
	KindCiClass           Kind = "ci_class"
)

type HierarchyRow struct {
	Key      string
	Level    int
	NameFull string
	NameAbbr string
	Comment  string
}

type CiClassRow struct {
	Key      string
	Sort     int
	NameFull string
	NameAbbr string
	Comment  string

	// ParentKey references another catalog row's natural key, never a numeric
	// id, since catalog rows precede insertion. Parents are always listed
	// before the children that reference them.
	ParentKey string
}

type StatusRow struct {
	Key      string
	NameFull string
	NameAbbr string
	Comment  string
}

// LocationHierarchyRows follows the OpenStreetMap admin_level schema for the
// upper rungs, listed root to leaf.
var LocationHierarchyRows = []HierarchyRow{
	{Key: "admin_level__2", Level: 20, NameFull: "Country", NameAbbr: "Ctry.", Comment: "Country level (OpenStreetMap admin_level 2)"},
	{Key: "admin_level__4", Level: 40, NameFull: "State/Region", NameAbbr: "State", Comment: "State/Province level (OpenStreetMap admin_level 4)"},
	{Key: "admin_level__6", Level: 60, NameFull: "District", NameAbbr: "Dist.", Comment: "District level (OpenStreetMap admin_level 6)"},
	{Key: "admin_level__8", Level: 80, NameFull: "City", NameAbbr: "City", Comment: "City/Municipality level (OpenStreetMap admin_level 8)"},
	{Key: "building", Level: 200, NameFull: "Building", NameAbbr: "Bld.", Comment: "Building"},
	{Key: "floor", Level: 210, NameFull: "Floor", NameAbbr: "Flr.", Comment: "Floor within building"},
	{Key: "room", Level: 220, NameFull: "Room", NameAbbr: "Room", Comment: "Room within floor"},
	{Key: "rack", Level: 230, NameFull: "Rack", NameAbbr: "Rack", Comment: "Server rack"},
	{Key: "rack_unit", Level: 240, NameFull: "Rack Unit", NameAbbr: "RU", Comment: "Position within rack (1U, 2U, etc.)"},
}

// CiClassRows lists the default class tree root to leaf.
var CiClassRows = []CiClassRow{
	{Key: "hardware", Sort: 10, NameFull: "Hardware", NameAbbr: "Hw", Comment: "Physical hardware devices"},
	{Key: "software", Sort: 100, NameFull: "Software", NameAbbr: "Sw", Comment: "Software and applications"},
	{Key: "service", Sort: 200, NameFull: "Service", NameAbbr: "Svc", Comment: "IT Services"},

	{Key: "server", Sort: 11, NameFull: "Server", NameAbbr: "Srv", Comment: "Server hardware", ParentKey: "hardware"},
	{Key: "vm", Sort: 12, NameFull: "Virtual machine", NameAbbr: "VM", Comment: "Virtual server \"hardware\"", ParentKey: "hardware"},
	{Key: "storage", Sort: 13, NameFull: "Storage", NameAbbr: "Sto", Comment: "Storage systems (SAN, NAS)", ParentKey: "hardware"},
	{Key: "network", Sort: 14, NameFull: "Network Equipment", NameAbbr: "Nw", Comment: "Network devices", ParentKey: "hardware"},
	{Key: "workstation", Sort: 15, NameFull: "Workstation", NameAbbr: "Ws", Comment: "Desktop and laptop computers", ParentKey: "hardware"},
	{Key: "mobile", Sort: 16, NameFull: "Mobile Device", NameAbbr: "Mob", Comment: "Smartphones and tablets", ParentKey: "hardware"},
	{Key: "printer", Sort: 17, NameFull: "Printer", NameAbbr: "Prt", Comment: "Printers and multifunction devices", ParentKey: "hardware"},

	{Key: "switch", Sort: 131, NameFull: "Switch", NameAbbr: "Swi", Comment: "Network switches", ParentKey: "network"},
	{Key: "router", Sort: 132, NameFull: "Router", NameAbbr: "Rtr", Comment: "Network routers", ParentKey: "network"},
	{Key: "firewall", Sort: 133, NameFull: "Firewall", NameAbbr: "Fw", Comment: "Firewall devices", ParentKey: "network"},
	{Key: "wlan_ap", Sort: 134, NameFull: "WLAN Access Point", NameAbbr: "Ap", Comment: "Wireless access points", ParentKey: "network"},

	{Key: "operating_system", Sort: 101, NameFull: "Operating System", NameAbbr: "OS", Comment: "Operating systems", ParentKey: "software"},
	{Key: "database", Sort: 102, NameFull: "Database", NameAbbr: "DB", Comment: "Database systems", ParentKey: "software"},
	{Key: "application", Sort: 103, NameFull: "Application", NameAbbr: "App", Comment: "Business applications", ParentKey: "software"},
	{Key: "middleware", Sort: 104, NameFull: "Middleware", NameAbbr: "MW", Comment: "Middleware and integration software", ParentKey: "software"},
}

// LifecycleStatusRows is flat, ordered by the typical asset lifecycle.
var LifecycleStatusRows = []StatusRow{
	{Key: "planned", NameFull: "Planned", NameAbbr: "plan", Comment: "In planning phase"},
	{Key: "ordered", NameFull: "Ordered", NameAbbr: "ord", Comment: "Ordered but not yet delivered"},
	{Key: "in_delivery", NameFull: "In Delivery", NameAbbr: "deliv", Comment: "Being delivered"},
	{Key: "in_setup", NameFull: "In Setup", NameAbbr: "setup", Comment: "Being set up/configured"},
	{Key: "in_test", NameFull: "In Test", NameAbbr: "test", Comment: "In testing phase"},
	{Key: "active", NameFull: "Active", NameAbbr: "act", Comment: "Currently in production use"},
	{Key: "maintenance", NameFull: "Maintenance", NameAbbr: "maint", Comment: "Under maintenance"},
	{Key: "repair", NameFull: "Repair", NameAbbr: "rep", Comment: "Being repaired"},
	{Key: "spare", NameFull: "Spare", NameAbbr: "spare", Comment: "Spare/backup device"},
	{Key: "decommissioned", NameFull: "Decommissioned", NameAbbr: "decomm", Comment: "Decommissioned, no longer in use"},
	{Key: "disposed", NameFull: "Disposed", NameAbbr: "disp", Comment: "Physically disposed/recycled"},
}

// InsertionOrder runs root to leaf. CI classes go last: they never reference
// the other kinds, and their self-references resolve because parents precede
// children within CiClassRows.
func InsertionOrder() []Kind {
	return []Kind{KindLocationHierarchy, KindLifecycleStatus, KindCiClass}
}

// DeletionOrder is the exact reverse. CI classes must be cleared first, and
// within the kind children before parents.
func DeletionOrder() []Kind {
	return []Kind{KindCiClass, KindLifecycleStatus, KindLocationHierarchy}
}
