package permission

import (
	"context"
	"slices"

	"authcore.io/internal/roles"
)

// UserChecker answers operations on users. Ranking uses global roles only.
//
//	create()
//	read(target)
//	update(target)           self is always allowed
//	delete(target)           self is never allowed
//	grantRole(target, role)  role is a global role of the target's kind
type UserChecker struct {
	checker
}

func NewUserChecker(env Env, actor roles.Ref) Checker {
	return &UserChecker{checker{env: env, actor: actor}}
}

func (u *UserChecker) Checks() map[Verb]CheckFunc {
	return map[Verb]CheckFunc{
		VerbCreate:    u.create,
		VerbRead:      u.read,
		VerbUpdate:    u.update,
		VerbDelete:    u.delete,
		VerbGrantRole: u.grantRole,
	}
}

func (u *UserChecker) scope() roles.Scope {
	return roles.GlobalScope(u.actor.Kind)
}

func (u *UserChecker) create(ctx context.Context, _ ...any) Outcome {
	names, err := u.globalNames(ctx, u.actor)
	if err != nil {
		return Fail(err)
	}
	if u.topGlobal(names) {
		return Allow(names)
	}
	return Deny("creating users needs a top global role")
}

func (u *UserChecker) read(ctx context.Context, args ...any) Outcome {
	target, err := refArg(args, 0, roles.KindUser)
	if err != nil {
		return Fail(err)
	}
	if u.isSelf(target) {
		return Allow(nil)
	}
	return u.againstTarget(ctx, target)
}

func (u *UserChecker) update(ctx context.Context, args ...any) Outcome {
	target, err := refArg(args, 0, roles.KindUser)
	if err != nil {
		return Fail(err)
	}
	if u.isSelf(target) {
		return Allow(nil)
	}
	return u.againstTarget(ctx, target)
}

func (u *UserChecker) delete(ctx context.Context, args ...any) Outcome {
	target, err := refArg(args, 0, roles.KindUser)
	if err != nil {
		return Fail(err)
	}
	if u.isSelf(target) {
		return Deny("users cannot delete themselves")
	}
	return u.againstTarget(ctx, target)
}

func (u *UserChecker) grantRole(ctx context.Context, args ...any) Outcome {
	target, err := refArg(args, 0, roles.KindUser)
	if err != nil {
		return Fail(err)
	}
	role, err := stringArg(args, 1)
	if err != nil {
		return Fail(err)
	}
	if _, ok := u.env.Catalog.Find(role, roles.GlobalScope(target.Kind)); !ok {
		return Deny("unknown global role " + role)
	}
	out := u.againstTarget(ctx, target)
	if !out.Allowed() {
		return out
	}
	names, _ := out.Payload().([]string)
	if first := u.env.Catalog.TopNames(u.scope(), 1); len(first) == 1 && slices.Contains(names, first[0]) {
		return out
	}
	above, err := u.outranks(names, []string{role}, u.scope())
	if err != nil {
		return Fail(err)
	}
	if !above {
		return Deny("cannot grant a role at or above your own")
	}
	return out
}

// againstTarget applies the ranking rule between the actor and target.
func (u *UserChecker) againstTarget(ctx context.Context, target roles.Ref) Outcome {
	names, err := u.globalNames(ctx, u.actor)
	if err != nil {
		return Fail(err)
	}
	if !u.ranked(names, u.scope()) {
		return Deny("no global role")
	}
	if u.topGlobal(names) {
		return Allow(names)
	}
	targetNames, err := u.globalNames(ctx, target)
	if err != nil {
		return Fail(err)
	}
	above, err := u.outranks(names, targetNames, u.scope())
	if err != nil {
		return Fail(err)
	}
	if !above {
		return Deny("target is not outranked")
	}
	return Allow(names)
}
