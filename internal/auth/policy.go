package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/pubshark/backend/internal/models"
)

const (
	ObjArticle      = "article"
	ObjComment      = "comment"
	ObjNotification = "notification"
	ObjUser         = "user"

	ActCreate   = "create"
	ActEdit     = "edit"
	ActReview   = "review"
	ActResubmit = "resubmit"
	ActDelete   = "delete"
	ActListAny  = "list-any"
	ActLike     = "like"
	ActReact    = "react"
	ActModerate = "moderate"
	ActRead     = "read"
	ActPurge    = "purge"
	ActManage   = "manage"
)

// Policy answers role-level questions. Ownership rules (author resubmits,
// commenter edits) are checked by the services on top of this.
type Policy struct {
	e *casbin.Enforcer
}

var rolePolicies = [][]string{
	{string(models.RoleUser), ObjArticle, ActLike},
	{string(models.RoleUser), ObjComment, ActCreate},
	{string(models.RoleUser), ObjComment, ActReact},
	{string(models.RoleUser), ObjNotification, ActRead},

	{string(models.RoleWriter), ObjArticle, ActCreate},
	{string(models.RoleWriter), ObjArticle, ActResubmit},

	{string(models.RoleAdmin), ObjArticle, ActReview},
	{string(models.RoleAdmin), ObjArticle, ActEdit},
	{string(models.RoleAdmin), ObjArticle, ActDelete},
	{string(models.RoleAdmin), ObjArticle, ActListAny},
	{string(models.RoleAdmin), ObjComment, ActModerate},
	{string(models.RoleAdmin), ObjNotification, ActPurge},
	{string(models.RoleAdmin), ObjUser, ActManage},
}

// admin inherits writer, writer inherits user.
var roleInheritance = [][]string{
	{string(models.RoleAdmin), string(models.RoleWriter)},
	{string(models.RoleWriter), string(models.RoleUser)},
}

func NewPolicy() (*Policy, error) {
	m := model.NewModel()
	m.AddDef("r", "r", "sub, obj, act")
	m.AddDef("p", "p", "sub, obj, act")
	m.AddDef("g", "g", "_, _")
	m.AddDef("e", "e", "some(where (p.eft == allow))")
	m.AddDef("m", "m", "g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act")

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if _, err := e.AddPolicies(rolePolicies); err != nil {
		return nil, fmt.Errorf("load role policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(roleInheritance); err != nil {
		return nil, fmt.Errorf("load role inheritance: %w", err)
	}
	return &Policy{e: e}, nil
}

// MustPolicy is NewPolicy for wiring code and tests.
func MustPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Policy) Allowed(role models.Role, obj, act string) bool {
	if !role.Valid() {
		return false
	}
	ok, err := p.e.Enforce(string(role), obj, act)
	return err == nil && ok
}
