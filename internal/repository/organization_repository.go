package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

// OrganizationRepository defines data access for organizations and their members.
type OrganizationRepository interface {
	// CreateWithOwner inserts the organization and makes ownerID its owner.
	CreateWithOwner(ctx context.Context, org *models.Organization, ownerID uint) error

	Update(ctx context.Context, org *models.Organization) error
	FindBySlug(ctx context.Context, slug string) (*models.Organization, error)
	FindByDomain(ctx context.Context, domain string) (*models.Organization, error)

	// FindBySlugAndUserEmail returns the organization only when the user with
	// email is a member; the membership (with role) is returned alongside.
	FindBySlugAndUserEmail(ctx context.Context, slug, email string) (*models.Organization, *models.Membership, error)

	// SlugsWithPrefix returns every slug starting with prefix.
	SlugsWithPrefix(ctx context.Context, prefix string) ([]string, error)

	// ListByUser returns the user's memberships with organizations preloaded.
	ListByUser(ctx context.Context, userID uint) ([]models.Membership, error)

	// ListMembers returns memberships with users preloaded.
	ListMembers(ctx context.Context, orgID uint) ([]models.Membership, error)

	FindMembership(ctx context.Context, orgID, userID uint) (*models.Membership, error)

	// AddMember returns gorm.ErrDuplicatedKey when the user already belongs to the organization.
	AddMember(ctx context.Context, membership *models.Membership) error
}

type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository instance
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) CreateWithOwner(ctx context.Context, org *models.Organization, ownerID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org.CreatedByID = ownerID
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		return tx.Create(&models.Membership{
			OrganizationID: org.ID,
			UserID:         ownerID,
			Role:           models.RoleOwner,
		}).Error
	})
}

func (r *organizationRepository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Omit("Memberships").Save(org).Error
}

func (r *organizationRepository) FindBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) FindByDomain(ctx context.Context, domain string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) FindBySlugAndUserEmail(ctx context.Context, slug, email string) (*models.Organization, *models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Joins("JOIN organizations ON organizations.id = users_organizations.organization_id").
		Joins("JOIN users ON users.id = users_organizations.user_id").
		Where("organizations.slug = ? AND users.email = ?", slug, email).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return membership.Organization, &membership, nil
}

func (r *organizationRepository) SlugsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Model(&models.Organization{}).
		Where("slug LIKE ?", prefix+"%").
		Pluck("slug", &slugs).Error
	return slugs, err
}

func (r *organizationRepository) ListByUser(ctx context.Context, userID uint) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error
	return memberships, err
}

func (r *organizationRepository) ListMembers(ctx context.Context, orgID uint) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&memberships).Error
	return memberships, err
}

func (r *organizationRepository) FindMembership(ctx context.Context, orgID, userID uint) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *organizationRepository) AddMember(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Omit("Organization", "User").Create(membership).Error
}

// InviteRepository defines data access for organization invites.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) error

	// FindByToken returns the invite with its organization preloaded.
	FindByToken(ctx context.Context, token string) (*models.Invite, error)

	// ListPending returns unused invites of an organization.
	ListPending(ctx context.Context, orgID uint) ([]models.Invite, error)
}

type inviteRepository struct {
	db *gorm.DB
}

// NewInviteRepository creates a new InviteRepository instance
func NewInviteRepository(db *gorm.DB) InviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Create(ctx context.Context, invite *models.Invite) error {
	return r.db.WithContext(ctx).Omit("Organization").Create(invite).Error
}

func (r *inviteRepository) FindByToken(ctx context.Context, token string) (*models.Invite, error) {
	var invite models.Invite
	err := r.db.WithContext(ctx).Preload("Organization").Where("token = ?", token).First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepository) ListPending(ctx context.Context, orgID uint) ([]models.Invite, error) {
	var invites []models.Invite
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_used = ?", orgID, false).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}
