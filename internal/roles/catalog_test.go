package roles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var orgScope = ScopeOf(KindUser, KindOrganization)

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Definition{
		{Name: "owner", SourceKind: KindUser, TargetKind: KindOrganization},
		{Name: "owner", SourceKind: KindUser, TargetKind: KindOrganization, Priority: 3},
	})
	require.ErrorIs(t, err, ErrDuplicateRole)

	_, err = NewCatalog([]Definition{
		{Name: "owner", SourceKind: KindUser},
		{Name: "owner", SourceKind: KindUser, TargetKind: KindOrganization},
	})
	require.NoError(t, err)

	_, err = NewCatalog([]Definition{{Name: " ", SourceKind: KindUser}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMatchDefaultsToGlobalScope(t *testing.T) {
	c := DefaultCatalog()
	master, ok := c.Find(RoleMasterAdmin, Scope{SourceKinds: []string{KindUser}})
	require.True(t, ok)
	require.True(t, c.Match(master, Scope{SourceKinds: []string{KindUser}}))
	require.False(t, c.Match(master, orgScope))
	require.False(t, c.Match(master, Scope{}))

	_, ok = c.Find(RoleAdmin, GlobalScope(KindUser))
	require.False(t, ok)
	_, ok = c.Find(RoleIntegration, orgScope)
	require.False(t, ok)

	both := Scope{SourceKinds: []string{KindUser}, TargetKinds: []string{"", KindOrganization}}
	_, ok = c.Find(RoleAdmin, both)
	require.True(t, ok)
}

func TestHighestPriority(t *testing.T) {
	c := DefaultCatalog()

	def, ok := c.HighestPriority([]string{RoleGuest, RoleBilling, RoleMember}, orgScope, false)
	require.True(t, ok)
	require.Equal(t, RoleBilling, def.Name)

	def, ok = c.HighestPriority([]string{RoleGuest, RoleBilling, RoleMember}, orgScope, true)
	require.True(t, ok)
	require.Equal(t, RoleMember, def.Name)

	_, ok = c.HighestPriority([]string{RoleMasterAdmin, "ghost"}, orgScope, false)
	require.False(t, ok)
}

func TestHighestPriorityTieKeepsDeclarationOrder(t *testing.T) {
	c := MustCatalog([]Definition{
		{Name: "b", SourceKind: KindUser, Priority: 5},
		{Name: "a", SourceKind: KindUser, Priority: 5},
	})
	def, ok := c.HighestPriority([]string{"a", "b"}, GlobalScope(KindUser), false)
	require.True(t, ok)
	require.Equal(t, "b", def.Name)
}

func TestCompare(t *testing.T) {
	c := DefaultCatalog()

	got, err := c.Compare(RoleAdmin, RoleMember, orgScope)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	got, err = c.Compare(RoleGuest, RoleSuperAdmin, orgScope)
	require.NoError(t, err)
	require.Equal(t, -1, got)

	got, err = c.Compare(RoleMember, RoleMember, orgScope)
	require.NoError(t, err)
	require.Equal(t, 0, got)

	_, err = c.Compare(RoleMasterAdmin, RoleMember, orgScope)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestCompareHighest(t *testing.T) {
	c := DefaultCatalog()

	got, err := c.CompareHighest([]string{RoleGuest, RoleAdmin}, []string{RoleMember, RoleBilling}, orgScope)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	got, err = c.CompareHighest([]string{RoleMember}, []string{RoleBilling}, orgScope)
	require.NoError(t, err)
	require.Equal(t, -1, got)

	_, err = c.CompareHighest([]string{RoleMember}, nil, orgScope)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestPriorityNeighbours(t *testing.T) {
	c := DefaultCatalog()

	higher, err := c.HigherPriorityNames(RoleMember, orgScope)
	require.NoError(t, err)
	require.Equal(t, []string{RoleSuperAdmin, RoleAdmin, RoleBilling}, higher)

	lower, err := c.LowerPriorityNames(RoleAdmin, orgScope)
	require.NoError(t, err)
	require.Equal(t, []string{RoleBilling, RoleMember, RoleGuest}, lower)

	_, err = c.HigherPriorityNames("ghost", orgScope)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestPrimaryAndTopNames(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, []string{RoleSuperAdmin, RoleAdmin, RoleMember, RoleGuest}, c.PrimaryNames(orgScope))
	require.Equal(t, []string{RoleMasterAdmin, RoleSupport}, c.TopNames(GlobalScope(KindUser), 2))
	require.Equal(t, []string{RoleIntegration}, c.TopNames(ScopeOf(KindAPIKey, KindOrganization), 5))
	require.Len(t, c.Definitions(), len(DefaultDefinitions))
}
