package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// SeedData is the import file layout.
type SeedData struct {
	// Owner is the email of an existing user who owns imported organizations
	// and authors every imported record.
	Owner         string             `json:"owner"`
	Organizations []OrganizationData `json:"organizations"`
}

type OrganizationData struct {
	Slug     string        `json:"slug"`
	Name     string        `json:"name"`
	Domain   string        `json:"domain"`
	Projects []ProjectData `json:"projects"`
}

type ProjectData struct {
	Slug   string      `json:"slug"`
	Name   string      `json:"name"`
	Tests  []TestData  `json:"tests"`
	Suites []SuiteData `json:"suites"`
}

type TestData struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type SuiteData struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tests       []string `json:"tests"` // test slugs
}

// importReport counts what an import created or skipped.
type importReport struct {
	Organizations int
	Projects      int
	Tests         int
	Suites        int
	Memberships   int
	Skipped       int
}

func newImportCommand(a *app) *cobra.Command {
	var dataPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import organizations, projects, tests and suites from JSON",
		Long:  "Records whose slug already exists are skipped; suite memberships are attached one test at a time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(dataPath)
			if err != nil {
				return fmt.Errorf("failed to read data file: %w", err)
			}
			var seed SeedData
			if err := json.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("failed to parse data file: %w", err)
			}

			report, err := newImporter(a.db, a.logger).Import(cmd.Context(), &seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"imported %d organizations, %d projects, %d tests, %d suites, %d memberships (%d skipped)\n",
				report.Organizations, report.Projects, report.Tests, report.Suites, report.Memberships, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "seed.json", "Path to the JSON data file")
	return cmd
}

type importer struct {
	users    repository.UserRepository
	orgs     repository.OrganizationRepository
	projects repository.ProjectRepository
	tests    repository.TestRepository
	suites   repository.TestSuiteRepository
	versions repository.TestSuiteVersionRepository
	logger   *log.Logger
	owner    *models.User
	report   importReport
}

func newImporter(db *gorm.DB, logger *log.Logger) *importer {
	return &importer{
		users:    repository.NewUserRepository(db),
		orgs:     repository.NewOrganizationRepository(db),
		projects: repository.NewProjectRepository(db),
		tests:    repository.NewTestRepository(db),
		suites:   repository.NewTestSuiteRepository(db),
		versions: repository.NewTestSuiteVersionRepository(db),
		logger:   logger,
	}
}

// Import writes seed to the store. It stops at the first store error; what
// was written before stays.
func (im *importer) Import(ctx context.Context, seed *SeedData) (*importReport, error) {
	owner, err := im.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(seed.Owner)))
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("owner %q does not exist, create it with `tmctl user create` first", seed.Owner)
	}
	im.owner = owner

	for i := range seed.Organizations {
		if err := im.importOrganization(ctx, &seed.Organizations[i]); err != nil {
			return nil, err
		}
	}
	return &im.report, nil
}

func (im *importer) importOrganization(ctx context.Context, data *OrganizationData) error {
	slug := data.Slug
	if slug == "" {
		slug = service.Kebab(data.Name)
	}

	org, err := im.orgs.FindBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("failed to load organization %q: %w", slug, err)
	}
	if org != nil {
		im.logger.Info("organization exists, skipping", "organization", slug)
		im.report.Skipped++
	} else {
		org = &models.Organization{
			Slug:        slug,
			Name:        data.Name,
			Domain:      strings.ToLower(data.Domain),
			CreatedByID: im.owner.ID,
		}
		if err := im.orgs.CreateWithOwner(ctx, org, im.owner.ID); err != nil {
			return fmt.Errorf("failed to create organization %q: %w", slug, err)
		}
		im.logger.Info("organization created", "organization", slug)
		im.report.Organizations++
	}

	for i := range data.Projects {
		if err := im.importProject(ctx, org, &data.Projects[i]); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) importProject(ctx context.Context, org *models.Organization, data *ProjectData) error {
	slug := data.Slug
	if slug == "" {
		slug = service.Kebab(data.Name)
	}

	project, err := im.projects.FindBySlugAndOrganizationSlug(ctx, slug, org.Slug)
	if err != nil {
		return fmt.Errorf("failed to load project %q: %w", slug, err)
	}
	if project != nil {
		im.logger.Info("project exists, skipping", "organization", org.Slug, "project", slug)
		im.report.Skipped++
	} else {
		project = &models.Project{Slug: slug, OrganizationID: org.ID, Name: data.Name}
		if err := im.projects.Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project %q: %w", slug, err)
		}
		im.logger.Info("project created", "organization", org.Slug, "project", slug)
		im.report.Projects++
	}

	for i := range data.Tests {
		if err := im.importTest(ctx, project, &data.Tests[i]); err != nil {
			return err
		}
	}
	for i := range data.Suites {
		if err := im.importSuite(ctx, project, &data.Suites[i]); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) importTest(ctx context.Context, project *models.Project, data *TestData) error {
	if data.Slug != "" {
		existing, err := im.tests.FindBySlugAndProject(ctx, data.Slug, project.ID)
		if err != nil {
			return fmt.Errorf("failed to load test %q: %w", data.Slug, err)
		}
		if existing != nil {
			im.logger.Debug("test exists, skipping", "test", data.Slug)
			im.report.Skipped++
			return nil
		}
	}

	test := &models.Test{Slug: orNewSlug(data.Slug), ProjectID: project.ID, CreatedByID: im.owner.ID}
	version := &models.TestVersion{
		Slug:        uuid.NewString(),
		Title:       data.Title,
		Description: data.Description,
		CreatedByID: im.owner.ID,
	}
	if err := im.tests.CreateWithVersion(ctx, test, version); err != nil {
		return fmt.Errorf("failed to create test %q: %w", test.Slug, err)
	}
	im.report.Tests++
	return nil
}

func (im *importer) importSuite(ctx context.Context, project *models.Project, data *SuiteData) error {
	var suite *models.TestSuite
	if data.Slug != "" {
		existing, err := im.suites.FindBySlugAndProject(ctx, data.Slug, project.ID)
		if err != nil {
			return fmt.Errorf("failed to load test suite %q: %w", data.Slug, err)
		}
		suite = existing
	}

	var version *models.TestSuiteVersion
	if suite != nil {
		im.logger.Debug("test suite exists, skipping", "suite", suite.Slug)
		im.report.Skipped++
		version = suite.DefaultVersion()
	} else {
		suite = &models.TestSuite{Slug: orNewSlug(data.Slug), ProjectID: project.ID, CreatedByID: im.owner.ID}
		version = &models.TestSuiteVersion{
			Slug:        uuid.NewString(),
			Title:       data.Title,
			Description: data.Description,
			CreatedByID: im.owner.ID,
		}
		if err := im.suites.CreateWithVersion(ctx, suite, version); err != nil {
			return fmt.Errorf("failed to create test suite %q: %w", suite.Slug, err)
		}
		im.report.Suites++
	}
	if version == nil || len(data.Tests) == 0 {
		return nil
	}

	runs, err := im.versions.CountRuns(ctx, version.ID)
	if err != nil {
		return fmt.Errorf("failed to count runs of test suite %q: %w", suite.Slug, err)
	}
	if runs > 0 {
		im.logger.Warn("default version has runs, leaving membership alone", "suite", suite.Slug, "version", version.Slug)
		return nil
	}

	for _, testSlug := range data.Tests {
		test, err := im.tests.FindBySlugAndProject(ctx, testSlug, project.ID)
		if err != nil {
			return fmt.Errorf("failed to load test %q: %w", testSlug, err)
		}
		if test == nil {
			im.logger.Warn("unknown test in suite, skipping", "suite", suite.Slug, "test", testSlug)
			continue
		}

		err = im.versions.AddTestToSuiteVersion(ctx, version.ID, test.ID)
		switch {
		case errors.Is(err, repository.ErrDuplicateMembership):
			im.logger.Warn("test already in suite version", "suite", suite.Slug, "test", testSlug)
		case err != nil:
			return fmt.Errorf("failed to add test %q to suite %q: %w", testSlug, suite.Slug, err)
		default:
			im.report.Memberships++
		}
	}
	return nil
}

func orNewSlug(slug string) string {
	if slug == "" {
		return uuid.NewString()
	}
	return slug
}
