package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayNameFallbacks(t *testing.T) {
	h := LocationHierarchy{Key: "building"}
	assert.Equal(t, "building", h.DisplayName())

	h.NameFull = "Building"
	assert.Equal(t, "Building", h.DisplayName())

	h.NameAbbr = "Bld."
	assert.Equal(t, "Bld.", h.DisplayName())

	c := Ci{Id: 7}
	assert.Equal(t, "CI #7", c.DisplayName())
}

func TestTreeLabels(t *testing.T) {
	loc := Location{
		NameAbbr: "HQ",
		Type:     &LocationHierarchy{NameAbbr: "Bld."},
	}
	assert.Equal(t, "Bld.: HQ", loc.TreeLabel())

	ci := Ci{NameAbbr: "WEB01", CiClass: &CiClass{NameAbbr: "WEB"}}
	assert.Equal(t, "WEB01 (WEB)", ci.TreeLabel())

	// Without the preloaded class the label degrades to the plain name.
	ci.CiClass = nil
	assert.Equal(t, "WEB01", ci.TreeLabel())
}

func TestBuildCiDetailUrl(t *testing.T) {
	sys := ExternalSystem{CiDetailUrl: "https://dcim.example.com/assets/${key_ext}"}
	assert.Equal(t, "https://dcim.example.com/assets/A-100", sys.BuildCiDetailUrl("A-100"))
	assert.Equal(t, "", sys.BuildCiDetailUrl(""))

	sys.CiDetailUrl = ""
	assert.Equal(t, "", sys.BuildCiDetailUrl("A-100"))
}
