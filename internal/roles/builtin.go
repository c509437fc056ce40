package roles

const (
	KindUser         = "User"
	KindOrganization = "Organization"
	KindAPIKey       = "ApiKey"
)

const (
	RoleMasterAdmin = "masteradmin"
	RoleSupport     = "support"
	RoleAuditor     = "auditor"

	RoleSuperAdmin  = "superadmin"
	RoleAdmin       = "admin"
	RoleBilling     = "billing"
	RoleMember      = "member"
	RoleGuest       = "guest"
	RoleIntegration = "integration"
)

// DefaultDefinitions is the compiled-in role table.
var DefaultDefinitions = []Definition{
	{Name: RoleMasterAdmin, SourceKind: KindUser, DisplayName: "Master administrator", Priority: 0, Primary: true},
	{Name: RoleSupport, SourceKind: KindUser, DisplayName: "Support", Priority: 10, Primary: true},
	{Name: RoleAuditor, SourceKind: KindUser, DisplayName: "Auditor", Priority: 50},

	{Name: RoleSuperAdmin, SourceKind: KindUser, TargetKind: KindOrganization, DisplayName: "Owner", Priority: 0, Primary: true},
	{Name: RoleAdmin, SourceKind: KindUser, TargetKind: KindOrganization, DisplayName: "Administrator", Priority: 10, Primary: true},
	{Name: RoleBilling, SourceKind: KindUser, TargetKind: KindOrganization, DisplayName: "Billing manager", Priority: 15},
	{Name: RoleMember, SourceKind: KindUser, TargetKind: KindOrganization, DisplayName: "Member", Priority: 20, Primary: true},
	{Name: RoleGuest, SourceKind: KindUser, TargetKind: KindOrganization, DisplayName: "Guest", Priority: 30, Primary: true},

	{Name: RoleIntegration, SourceKind: KindAPIKey, TargetKind: KindOrganization, DisplayName: "Integration", Priority: 20, Primary: true},
}

// DefaultCatalog builds a catalog from DefaultDefinitions.
func DefaultCatalog() *Catalog {
	return MustCatalog(DefaultDefinitions)
}
