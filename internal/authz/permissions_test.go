package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermissionsDeduplicate(t *testing.T) {
	perms := NewPermissions("employees.view", "employees.view", " employees.view ", "")
	require.Len(t, perms, 1)
	require.True(t, perms.Has("employees.view"))
	require.False(t, perms.Has("employees.edit"))
}

func TestPermissionsNamesSorted(t *testing.T) {
	perms := NewPermissions("reports.view", "absences.view", "dashboard.view")
	require.Equal(t, []string{"absences.view", "dashboard.view", "reports.view"}, perms.Names())
}

func TestPermissionsSignatureDeterministic(t *testing.T) {
	a := NewPermissions("b", "a", "c")
	b := NewPermissions("c", "b", "a")
	require.Equal(t, a.Signature(), b.Signature())
	require.Equal(t, "a,b,c", a.Signature())

	b.Add("d")
	require.NotEqual(t, a.Signature(), b.Signature())
}

func TestPermissionsEqual(t *testing.T) {
	a := NewPermissions("x", "y")
	b := NewPermissions("y", "x")
	require.True(t, a.Equal(b))

	b.Add("z")
	require.False(t, a.Equal(b))
}

func TestPermissionsCloneIndependent(t *testing.T) {
	orig := NewPermissions("x")
	clone := orig.Clone()
	clone.Add("y")
	require.False(t, orig.Has("y"))
	require.True(t, clone.Has("x"))
}

func TestPermissionsJSONRoundTrip(t *testing.T) {
	perms := NewPermissions("b", "a")
	data, err := json.Marshal(perms)
	require.NoError(t, err)
	require.JSONEq(t, `["a","b"]`, string(data))

	var decoded Permissions
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, perms.Equal(decoded))
}
