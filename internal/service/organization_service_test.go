package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

func TestOrganizationService_Create(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	org, err := e.orgs.Create(ctx, e.owner, &CreateOrganizationRequest{Name: "Acme", Domain: "acme2.io"})
	require.NoError(t, err)
	assert.Equal(t, "acme1", org.Slug)

	_, err = e.orgs.Create(ctx, e.owner, &CreateOrganizationRequest{Name: "Copycat", Domain: "ACME.io"})
	requireKind(t, err, ErrInvalidInput)

	_, err = e.orgs.Create(ctx, e.owner, &CreateOrganizationRequest{Name: "Bad", Domain: "no_tld"})
	requireKind(t, err, ErrInvalidInput)

	_, err = e.orgs.Create(ctx, e.owner, &CreateOrganizationRequest{Name: "!!!", Domain: "bang.io"})
	requireKind(t, err, ErrInvalidInput)

	views, err := e.orgs.List(ctx, e.owner)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, models.RoleOwner, v.Role)
	}
}

func TestOrganizationService_Update(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.orgs.Create(ctx, e.owner, &CreateOrganizationRequest{Name: "Beta", Domain: "beta.io"})
	require.NoError(t, err)

	scope, err := e.access.Organization(ctx, e.owner, "acme")
	require.NoError(t, err)

	_, err = e.orgs.Update(ctx, scope, &UpdateOrganizationRequest{Name: "Acme", Slug: "beta", Domain: "acme.io"})
	var taken *SlugTakenError
	require.True(t, errors.As(err, &taken))
	assert.Equal(t, "beta1", taken.SuggestedSlug)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = e.orgs.Update(ctx, scope, &UpdateOrganizationRequest{Name: "Acme", Slug: "acme", Domain: "beta.io"})
	requireKind(t, err, ErrInvalidInput)

	_, err = e.orgs.Update(ctx, scope, &UpdateOrganizationRequest{Name: "Acme", Slug: "Not A Slug", Domain: "acme.io"})
	requireKind(t, err, ErrInvalidInput)

	org, err := e.orgs.Update(ctx, scope, &UpdateOrganizationRequest{Name: "Acme Inc", Slug: "acme-inc", Domain: "acme.io"})
	require.NoError(t, err)
	assert.Equal(t, "acme-inc", org.Slug)

	_, err = e.access.Organization(ctx, e.owner, "acme-inc")
	require.NoError(t, err)
}

func TestOrganizationService_Members(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	member := e.signUp(t, "member@acme.io")

	owner, err := e.access.Organization(ctx, e.owner, "acme")
	require.NoError(t, err)

	t.Run("Step1_AddExistingUser", func(t *testing.T) {
		res, err := e.orgs.AddMember(ctx, owner, &AddMemberRequest{Email: "member@acme.io", Role: models.RoleUser})
		require.NoError(t, err)
		require.NotNil(t, res.Member)
		assert.Nil(t, res.Invite)
		assert.Equal(t, models.RoleUser, res.Member.Role)

		_, err = e.orgs.AddMember(ctx, owner, &AddMemberRequest{Email: "member@acme.io", Role: models.RoleUser})
		requireKind(t, err, ErrInvalidInput)
	})

	t.Run("Step2_InviteUnknownEmail", func(t *testing.T) {
		res, err := e.orgs.AddMember(ctx, owner, &AddMemberRequest{Email: "stranger@acme.io", Role: models.RoleAdmin})
		require.NoError(t, err)
		require.NotNil(t, res.Invite)
		assert.NotEmpty(t, res.Invite.Token)
		assert.Equal(t, "stranger@acme.io", res.Invite.Email)
	})

	t.Run("Step3_NonManagerRejected", func(t *testing.T) {
		scope, err := e.access.Organization(ctx, member, "acme")
		require.NoError(t, err)
		assert.False(t, scope.CanManage())

		_, err = e.orgs.AddMember(ctx, scope, &AddMemberRequest{Email: "x@acme.io", Role: models.RoleUser})
		requireKind(t, err, ErrNotAuthorized)

		_, err = e.orgs.Update(ctx, scope, &UpdateOrganizationRequest{Name: "Mine", Slug: "mine", Domain: "acme.io"})
		requireKind(t, err, ErrNotAuthorized)
	})

	t.Run("Step4_RoleRules", func(t *testing.T) {
		_, err := e.orgs.AddMember(ctx, owner, &AddMemberRequest{Email: "y@acme.io", Role: "king"})
		requireKind(t, err, ErrInvalidInput)
	})

	t.Run("Step5_ListMembers", func(t *testing.T) {
		members, err := e.orgs.ListMembers(ctx, owner)
		require.NoError(t, err)
		emails := make([]string, 0, len(members))
		for _, m := range members {
			emails = append(emails, m.Email)
		}
		assert.ElementsMatch(t, []string{"owner@acme.io", "member@acme.io"}, emails)
	})
}

func TestAccessService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	outsider := e.signUp(t, "outsider@else.io")

	_, err := e.access.Organization(ctx, nil, "acme")
	requireKind(t, err, ErrNotAuthorized)

	_, err = e.access.Organization(ctx, outsider, "acme")
	requireKind(t, err, ErrNotAuthorized)

	_, err = e.access.Organization(ctx, e.owner, "missing")
	requireKind(t, err, ErrNotAuthorized)

	_, err = e.access.Project(ctx, outsider, "acme", "shop")
	requireKind(t, err, ErrNotAuthorized)

	_, err = e.access.Project(ctx, e.owner, "acme", "missing")
	requireKind(t, err, ErrNotFound)

	scope, err := e.access.Project(ctx, e.owner, "acme", "shop")
	require.NoError(t, err)
	assert.True(t, scope.CanManage())
	assert.Equal(t, "shop", scope.Project.Slug)
}

func TestProjectService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	another, err := e.projects.Create(ctx, e.scope, &CreateProjectRequest{Name: "Shop"})
	require.NoError(t, err)
	assert.Equal(t, "shop1", another.Slug)

	camel, err := e.projects.Create(ctx, e.scope, &CreateProjectRequest{Name: "MobileApp"})
	require.NoError(t, err)
	assert.Equal(t, "mobile-app", camel.Slug)

	projects, err := e.projects.List(ctx, e.scope)
	require.NoError(t, err)
	assert.Len(t, projects, 3)

	updated, err := e.projects.Update(ctx, e.scope, &UpdateProjectRequest{Name: "Storefront"})
	require.NoError(t, err)
	assert.Equal(t, "Storefront", updated.Name)
	assert.Equal(t, "shop", updated.Slug)
}
