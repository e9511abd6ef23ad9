package tree

import (
	"cmdb_platform/cmdb/schema"
)

const (
	IconAdd      = "icon-add"
	IconFolder   = "icon-folder"
	IconPage     = "icon-page"
	IconSettings = "icon-settings"
	IconPackage  = "icon-package"
	IconHelp     = "icon-help"
)

// Node is one entry of the navigation tree. Id is either a bare numeric id
// (locations and CIs) or a type-tagged string such as "ci_class_7"; the client
// dispatches on that shape, so the mix is part of the wire contract. Title is
// omitted entirely when empty, the client checks for key presence.
type Node struct {
	Id       any    `json:"id"`
	Text     string `json:"text"`
	Icon     string `json:"icon"`
	Children bool   `json:"children"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
}

// title returns the tooltip, which is only shown when the node text is the
// abbreviation and a distinct full name exists.
func title(nameAbbr, nameFull string) string {
	if nameAbbr != "" && nameFull != "" && nameAbbr != nameFull {
		return nameFull
	}
	return ""
}

func folderNode(id, text string) Node {
	return Node{Id: id, Text: text, Icon: IconFolder, Children: true, Type: "folder"}
}

func actionNode(id, text, nodeType string) Node {
	return Node{Id: id, Text: text, Icon: IconAdd, Children: false, Type: nodeType}
}

func locationNode(location schema.Location, hasChildren bool) Node {
	icon := IconPage
	if hasChildren {
		icon = IconFolder
	}
	return Node{
		Id:       location.Id,
		Text:     location.TreeLabel(),
		Icon:     icon,
		Children: hasChildren,
		Type:     "location",
		Title:    title(location.NameAbbr, location.NameFull),
	}
}

func locationCisNode(location schema.Location) Node {
	return Node{
		Id:       idToken("location_cis", location.Id),
		Text:     "CIs",
		Icon:     IconFolder,
		Children: true,
		Type:     "location_cis",
	}
}

func hierarchyNode(level schema.LocationHierarchy) Node {
	return Node{
		Id:       idToken("hierarchy", level.Id),
		Text:     level.DisplayName(),
		Icon:     IconPage,
		Children: false,
		Type:     "hierarchy",
		Title:    title(level.NameAbbr, level.NameFull),
	}
}

// ciClassNode renders a class in basic-data mode (forCi false, children tracks
// subclasses only) or in for-ci mode (forCi true, children also counts CIs).
func ciClassNode(ciClass schema.CiClass, hasChildren, forCi bool) Node {
	prefix, nodeType := "ci_class", "ci_class"
	if forCi {
		prefix, nodeType = "ci_class_for_ci", "ci_class_for_ci"
	}
	icon := IconPage
	if hasChildren {
		icon = IconFolder
	}
	return Node{
		Id:       idToken(prefix, ciClass.Id),
		Text:     ciClass.DisplayName(),
		Icon:     icon,
		Children: hasChildren,
		Type:     nodeType,
		Title:    title(ciClass.NameAbbr, ciClass.NameFull),
	}
}

func ciNode(ci schema.Ci) Node {
	return Node{
		Id:       ci.Id,
		Text:     ci.TreeLabel(),
		Icon:     IconPage,
		Children: false,
		Type:     "ci",
		Title:    title(ci.NameAbbr, ci.NameFull),
	}
}

func lifecycleStatusNode(status schema.LifecycleStatus) Node {
	return Node{
		Id:       idToken("lifecycle_status", status.Id),
		Text:     status.DisplayName(),
		Icon:     IconPage,
		Children: false,
		Type:     "lifecycle_status",
		Title:    title(status.NameAbbr, status.NameFull),
	}
}

func extSysNode(extSys schema.ExternalSystem) Node {
	return Node{
		Id:       idToken("ext_sys", extSys.Id),
		Text:     extSys.DisplayName(),
		Icon:     IconPage,
		Children: false,
		Type:     "ext_sys",
		Title:    title(extSys.NameAbbr, extSys.NameFull),
	}
}
