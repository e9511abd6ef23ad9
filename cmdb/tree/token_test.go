package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		token string
		kind  tokenKind
		id    int64
	}{
		{"", tokenRoot, 0},
		{"settings", tokenSettings, 0},
		{"basic_data", tokenBasicData, 0},
		{"location_hierarchy", tokenLocationHierarchy, 0},
		{"ci_classes", tokenCiClasses, 0},
		{"lifecycle_statuses", tokenLifecycleStatuses, 0},
		{"external_systems", tokenExternalSystems, 0},
		{"cis_by_class", tokenCisByClass, 0},
		{"ci_class_7", tokenCiClass, 7},
		{"ci_class_for_ci_7", tokenCiClassForCi, 7},
		{"location_cis_12", tokenLocationCis, 12},
		{"42", tokenLocation, 42},
		{"garbage", tokenUnknown, 0},
		{"ci_class_", tokenUnknown, 0},
		{"ci_class_abc", tokenUnknown, 0},
		{"location_cis_x", tokenUnknown, 0},
		{"12abc", tokenUnknown, 0},
	}

	for _, tt := range tests {
		parsed := parseToken(tt.token)
		assert.Equal(t, tt.kind, parsed.kind, "token %q", tt.token)
		assert.Equal(t, tt.id, parsed.id, "token %q", tt.token)
	}
}

func TestNodeTitle(t *testing.T) {
	assert.Equal(t, "Building", title("Bld.", "Building"))
	assert.Equal(t, "", title("Bld.", ""))
	assert.Equal(t, "", title("", "Building"))
	assert.Equal(t, "", title("Building", "Building"))
	assert.Equal(t, "", title("", ""))
}

func TestIdTokenRoundTrip(t *testing.T) {
	parsed := parseToken(idToken("ci_class", 99))
	assert.Equal(t, tokenCiClass, parsed.kind)
	assert.Equal(t, int64(99), parsed.id)

	parsed = parseToken(idToken("ci_class_for_ci", 99))
	assert.Equal(t, tokenCiClassForCi, parsed.kind)
	assert.Equal(t, int64(99), parsed.id)
}
