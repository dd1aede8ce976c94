package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

var (
	domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// OrganizationService manages organizations and their members.
type OrganizationService interface {
	List(ctx context.Context, user *models.User) ([]OrganizationView, error)
	Create(ctx context.Context, user *models.User, req *CreateOrganizationRequest) (*models.Organization, error)
	Update(ctx context.Context, scope *Scope, req *UpdateOrganizationRequest) (*models.Organization, error)
	ListMembers(ctx context.Context, scope *Scope) ([]MemberView, error)

	// AddMember attaches an existing user, or invites an unknown email.
	AddMember(ctx context.Context, scope *Scope, req *AddMemberRequest) (*AddMemberResult, error)
}

type organizationService struct {
	orgRepo    repository.OrganizationRepository
	userRepo   repository.UserRepository
	inviteRepo repository.InviteRepository
	inviteTTL  time.Duration
	logger     *log.Logger
	now        func() time.Time
}

// NewOrganizationService creates the organization service.
func NewOrganizationService(
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	inviteRepo repository.InviteRepository,
	cfg config.AuthConfig,
	logger *log.Logger,
) OrganizationService {
	return &organizationService{
		orgRepo:    orgRepo,
		userRepo:   userRepo,
		inviteRepo: inviteRepo,
		inviteTTL:  cfg.InviteTTL(),
		logger:     logger.WithPrefix("organizations"),
		now:        time.Now,
	}
}

// ===== Request/Response DTOs =====

type CreateOrganizationRequest struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}

type UpdateOrganizationRequest struct {
	Name            string  `json:"name" binding:"required"`
	Slug            string  `json:"slug" binding:"required"`
	Domain          string  `json:"domain" binding:"required"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

type AddMemberRequest struct {
	Email string      `json:"email" binding:"required"`
	Role  models.Role `json:"role" binding:"required"`
}

// OrganizationView is an organization as seen by one member.
type OrganizationView struct {
	*models.Organization
	Role models.Role `json:"role"`
}

// MemberView is one member of an organization.
type MemberView struct {
	Email           string      `json:"email"`
	DisplayName     string      `json:"displayName"`
	ProfileImageURL string      `json:"profileImageUrl,omitempty"`
	Role            models.Role `json:"role"`
	JoinedAt        time.Time   `json:"joinedAt"`
}

// AddMemberResult carries either the new member or the invite that was issued.
type AddMemberResult struct {
	Member *MemberView    `json:"member,omitempty"`
	Invite *models.Invite `json:"invite,omitempty"`
}

// ===== Implementation =====

func normalizeDomain(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(domain))
	if !domainPattern.MatchString(d) {
		return "", invalid("domain %q is not valid", domain)
	}
	return d, nil
}

func (s *organizationService) List(ctx context.Context, user *models.User) ([]OrganizationView, error) {
	memberships, err := s.orgRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	views := make([]OrganizationView, 0, len(memberships))
	for _, m := range memberships {
		views = append(views, OrganizationView{Organization: m.Organization, Role: m.Role})
	}
	return views, nil
}

func (s *organizationService) Create(ctx context.Context, user *models.User, req *CreateOrganizationRequest) (*models.Organization, error) {
	name := strings.TrimSpace(req.Name)
	base := Kebab(name)
	if base == "" {
		return nil, invalid("name must contain letters or digits")
	}
	domain, err := normalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	if existing, err := s.orgRepo.FindByDomain(ctx, domain); err != nil {
		return nil, fmt.Errorf("failed to check domain: %w", err)
	} else if existing != nil {
		return nil, invalid("domain %q is already taken", domain)
	}

	taken, err := s.orgRepo.SlugsWithPrefix(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}

	org := &models.Organization{
		Slug:   UniqueSlug(base, taken),
		Name:   name,
		Domain: domain,
	}
	if err := s.orgRepo.CreateWithOwner(ctx, org, user.ID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: organization slug or domain was taken concurrently", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.logger.Info("organization created", "slug", org.Slug, "owner", user.Email)
	return org, nil
}

func (s *organizationService) Update(ctx context.Context, scope *Scope, req *UpdateOrganizationRequest) (*models.Organization, error) {
	if !scope.CanManage() {
		return nil, ErrNotAuthorized
	}
	org := scope.Organization

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	slug := strings.TrimSpace(req.Slug)
	if !slugPattern.MatchString(slug) {
		return nil, invalid("slug %q must be lowercase letters, digits and dashes", slug)
	}
	domain, err := normalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	if slug != org.Slug {
		existing, err := s.orgRepo.FindBySlug(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("failed to check slug: %w", err)
		}
		if existing != nil {
			taken, err := s.orgRepo.SlugsWithPrefix(ctx, slug)
			if err != nil {
				return nil, fmt.Errorf("failed to suggest slug: %w", err)
			}
			return nil, &SlugTakenError{Slug: slug, SuggestedSlug: UniqueSlug(slug, taken)}
		}
	}

	if domain != org.Domain {
		existing, err := s.orgRepo.FindByDomain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to check domain: %w", err)
		}
		if existing != nil {
			return nil, invalid("domain %q is already taken", domain)
		}
	}

	org.Name = name
	org.Slug = slug
	org.Domain = domain
	if req.ProfileImageURL != nil {
		org.ProfileImageURL = strings.TrimSpace(*req.ProfileImageURL)
	}

	if err := s.orgRepo.Update(ctx, org); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: organization slug or domain was taken concurrently", ErrConflict)
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return org, nil
}

func (s *organizationService) ListMembers(ctx context.Context, scope *Scope) ([]MemberView, error) {
	memberships, err := s.orgRepo.ListMembers(ctx, scope.Organization.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	views := make([]MemberView, 0, len(memberships))
	for _, m := range memberships {
		views = append(views, memberView(m.User, m.Role, m.CreatedAt))
	}
	return views, nil
}

func memberView(user *models.User, role models.Role, joined time.Time) MemberView {
	return MemberView{
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		ProfileImageURL: user.ProfileImageURL,
		Role:            role,
		JoinedAt:        joined,
	}
}

func (s *organizationService) AddMember(ctx context.Context, scope *Scope, req *AddMemberRequest) (*AddMemberResult, error) {
	if !scope.CanManage() {
		return nil, ErrNotAuthorized
	}
	if !req.Role.Valid() {
		return nil, invalid("role %q is not valid", req.Role)
	}
	if !scope.Membership.Role.CanAssign(req.Role) {
		return nil, invalid("only owners can add owners")
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user == nil {
		invite := &models.Invite{
			Email:          email,
			Role:           req.Role,
			Token:          newToken(),
			ExpiresAt:      s.now().Add(s.inviteTTL),
			OrganizationID: scope.Organization.ID,
			InvitedByID:    scope.User.ID,
		}
		if err := s.inviteRepo.Create(ctx, invite); err != nil {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}
		s.logger.Info("invite issued", "organization", scope.Organization.Slug, "email", email, "role", req.Role)
		return &AddMemberResult{Invite: invite}, nil
	}

	membership := &models.Membership{
		OrganizationID: scope.Organization.ID,
		UserID:         user.ID,
		Role:           req.Role,
	}
	if err := s.orgRepo.AddMember(ctx, membership); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("user %q is already a member", email)
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	view := memberView(user, membership.Role, membership.CreatedAt)
	s.logger.Info("member added", "organization", scope.Organization.Slug, "email", email, "role", req.Role)
	return &AddMemberResult{Member: &view}, nil
}
