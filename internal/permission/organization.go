package permission

import (
	"context"
	"slices"

	"authcore.io/internal/roles"
)

// OrganizationChecker answers operations on organizations and their
// memberships. Global and organization roles rank on the same priority scale.
type OrganizationChecker struct {
	checker
}

func NewOrganizationChecker(env Env, actor roles.Ref) Checker {
	return &OrganizationChecker{checker{env: env, actor: actor}}
}

func (o *OrganizationChecker) Checks() map[Verb]CheckFunc {
	return map[Verb]CheckFunc{
		VerbCreate:           o.create,
		VerbRead:             o.read,
		VerbUpdate:           o.update,
		VerbDelete:           o.delete,
		VerbAddMember:        o.addMember,
		VerbRemoveMember:     o.removeMember,
		VerbUpdateMemberRole: o.updateMemberRole,
	}
}

// scope ranks the actor's roles against user roles.
func (o *OrganizationChecker) scope() roles.Scope {
	return roles.Scope{
		SourceKinds: []string{o.actor.Kind, roles.KindUser},
		TargetKinds: []string{"", roles.KindOrganization},
	}
}

// rankScope ranks the actor's roles against member's, whatever member's kind.
func (o *OrganizationChecker) rankScope(member roles.Ref) roles.Scope {
	sc := o.scope()
	if !slices.Contains(sc.SourceKinds, member.Kind) {
		sc.SourceKinds = append(sc.SourceKinds, member.Kind)
	}
	return sc
}

func (o *OrganizationChecker) memberScope(member roles.Ref) roles.Scope {
	return roles.ScopeOf(member.Kind, roles.KindOrganization)
}

// namesIn returns who's global roles plus its roles on org.
func (o *OrganizationChecker) namesIn(ctx context.Context, who, org roles.Ref) ([]string, error) {
	return o.env.Roles.NamesFor(ctx, who, roles.ListOptions{Target: &org})
}

// orgOnly returns who's roles on org without global ones.
func (o *OrganizationChecker) orgOnly(ctx context.Context, who, org roles.Ref) ([]string, error) {
	return o.env.Roles.NamesFor(ctx, who, roles.ListOptions{Target: &org, Exact: true})
}

func (o *OrganizationChecker) create(context.Context, ...any) Outcome {
	if o.actor.Kind != roles.KindUser {
		return Deny("only users create organizations")
	}
	return Allow(nil)
}

func (o *OrganizationChecker) read(ctx context.Context, args ...any) Outcome {
	_, names, out, done := o.prologue(ctx, args)
	if done {
		return out
	}
	return Allow(names)
}

func (o *OrganizationChecker) update(ctx context.Context, args ...any) Outcome {
	_, names, out, done := o.prologue(ctx, args)
	if done {
		return out
	}
	return o.atLeast(names, roles.RoleAdmin)
}

func (o *OrganizationChecker) delete(ctx context.Context, args ...any) Outcome {
	_, names, out, done := o.prologue(ctx, args)
	if done {
		return out
	}
	return o.atLeast(names, roles.RoleSuperAdmin)
}

func (o *OrganizationChecker) addMember(ctx context.Context, args ...any) Outcome {
	role, err := stringArg(args, 1)
	if err != nil {
		return Fail(err)
	}
	if _, ok := o.env.Catalog.Find(role, roles.ScopeOf(roles.KindUser, roles.KindOrganization)); !ok {
		return Deny("unknown organization role " + role)
	}
	_, names, out, done := o.prologue(ctx, args)
	if done {
		return out
	}
	return o.above(names, []string{role}, "cannot add a member at or above your own role")
}

func (o *OrganizationChecker) removeMember(ctx context.Context, args ...any) Outcome {
	org, err := refArg(args, 0, roles.KindOrganization)
	if err != nil {
		return Fail(err)
	}
	member, err := refArg(args, 1, roles.KindUser)
	if err != nil {
		return Fail(err)
	}
	if o.isSelf(member) {
		return Allow(nil)
	}
	_, names, out, done := o.prologue(ctx, args)
	if done {
		return out
	}
	memberNames, err := o.orgOnly(ctx, member, org)
	if err != nil {
		return Fail(err)
	}
	return o.aboveIn(names, memberNames, o.rankScope(member), "member is not outranked")
}

func (o *OrganizationChecker) updateMemberRole(ctx context.Context, args ...any) Outcome {
	org, err := refArg(args, 0, roles.KindOrganization)
	if err != nil {
		return Fail(err)
	}
	member, err := refArg(args, 1, roles.KindUser)
	if err != nil {
		return Fail(err)
	}
	role, err := stringArg(args, 2)
	if err != nil {
		return Fail(err)
	}
	if _, ok := o.env.Catalog.Find(role, o.memberScope(member)); !ok {
		return Deny("unknown organization role " + role)
	}
	_, names, out, done := o.prologue(ctx, args)
	if done {
		return out
	}
	if o.isSelf(member) {
		return Deny("cannot change your own organization role")
	}
	memberNames, err := o.orgOnly(ctx, member, org)
	if err != nil {
		return Fail(err)
	}
	scope := o.rankScope(member)
	if out := o.aboveIn(names, memberNames, scope, "member is not outranked"); !out.Allowed() {
		return out
	}
	return o.aboveIn(names, []string{role}, scope, "cannot assign a role at or above your own")
}

// prologue reads the organization argument and the actor's roles. It
// finishes the check early when the actor has no role or a top global role.
func (o *OrganizationChecker) prologue(ctx context.Context, args []any) (org roles.Ref, names []string, out Outcome, done bool) {
	org, err := refArg(args, 0, roles.KindOrganization)
	if err != nil {
		return org, nil, Fail(err), true
	}
	names, err = o.namesIn(ctx, o.actor, org)
	if err != nil {
		return org, nil, Fail(err), true
	}
	if o.topGlobal(names) {
		return org, names, Allow(names), true
	}
	orgNames, err := o.orgOnly(ctx, o.actor, org)
	if err != nil {
		return org, nil, Fail(err), true
	}
	if !o.ranked(orgNames, o.scope()) {
		return org, names, Deny("no role in organization " + org.ID), true
	}
	return org, names, Outcome{}, false
}

// atLeast allows when the actor's highest role ranks at or above role.
func (o *OrganizationChecker) atLeast(names []string, role string) Outcome {
	if slices.Contains(names, role) {
		return Allow(names)
	}
	above, err := o.outranks(names, []string{role}, o.scope())
	if err != nil {
		return Fail(err)
	}
	if !above {
		return Deny("needs " + role + " or above")
	}
	return Allow(names)
}

func (o *OrganizationChecker) above(names, others []string, reason string) Outcome {
	return o.aboveIn(names, others, o.scope(), reason)
}

func (o *OrganizationChecker) aboveIn(names, others []string, scope roles.Scope, reason string) Outcome {
	ok, err := o.outranks(names, others, scope)
	if err != nil {
		return Fail(err)
	}
	if !ok {
		return Deny(reason)
	}
	return Allow(names)
}
