package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/dispatch"
	"github.com/amoshaviv/flow-tester-sub001/internal/logger"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
	"github.com/amoshaviv/flow-tester-sub001/internal/websocket"
)

const agentToken = "agent-secret"

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []*dispatch.Task
}

func (d *recordingDispatcher) Dispatch(_ context.Context, task *dispatch.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

func (d *recordingDispatcher) last() *dispatch.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.tasks) == 0 {
		return nil
	}
	return d.tasks[len(d.tasks)-1]
}

type testEnv struct {
	router     *gin.Engine
	db         *gorm.DB
	hub        *websocket.Hub
	dispatcher *recordingDispatcher
}

func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Agent.Token = agentToken

	db, err := repository.OpenDatabase(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	l := logger.Discard()
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	userRepo := repository.NewUserRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	testRepo := repository.NewTestRepository(db)
	suiteRepo := repository.NewTestSuiteRepository(db)
	versionRepo := repository.NewTestSuiteVersionRepository(db)
	suiteRunRepo := repository.NewTestSuiteRunRepository(db)
	dispatcher := &recordingDispatcher{}

	svc := Services{
		Auth:     service.NewAuthService(userRepo, repository.NewSessionRepository(db), inviteRepo, cfg.Auth, l),
		Access:   service.NewAccessService(orgRepo, projectRepo),
		Orgs:     service.NewOrganizationService(orgRepo, userRepo, inviteRepo, cfg.Auth, l),
		Projects: service.NewProjectService(projectRepo, l),
		Tests:    service.NewTestService(testRepo, l),
		Suites:   service.NewSuiteService(suiteRepo, versionRepo, suiteRunRepo, l),
		Runs: service.NewRunService(testRepo, suiteRepo, versionRepo,
			repository.NewTestRunRepository(db), suiteRunRepo, dispatcher, hub, l),
		Analyses: service.NewAnalysisService(repository.NewAnalysisRepository(db), dispatcher, hub, l),
	}

	return &testEnv{
		router:     NewRouter(svc, hub, cfg, l),
		db:         db,
		hub:        hub,
		dispatcher: dispatcher,
	}
}

// call performs a request with an optional bearer token and JSON body and
// decodes the JSON response.
func (e *testEnv) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w.Code, response
}

// signUpAndIn registers email and returns a session token.
func (e *testEnv) signUpAndIn(t *testing.T, email string) string {
	t.Helper()
	code, _ := e.call(t, http.MethodPost, "/api/v2/auth/signup", "", gin.H{
		"email":       email,
		"password":    "correct horse",
		"displayName": email,
	})
	require.Equal(t, http.StatusCreated, code)

	code, body := e.call(t, http.MethodPost, "/api/v2/auth/signin", "", gin.H{
		"email":    email,
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, code)
	return body["token"].(string)
}

// seedProject creates organization "acme" with project "shop" owned by a new
// user and returns that user's token.
func (e *testEnv) seedProject(t *testing.T) string {
	t.Helper()
	token := e.signUpAndIn(t, "owner@acme.io")

	code, _ := e.call(t, http.MethodPost, "/api/v2/organizations", token, gin.H{"name": "Acme", "domain": "acme.io"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = e.call(t, http.MethodPut, "/api/v2/organizations/acme/projects", token, gin.H{"name": "Shop"})
	require.Equal(t, http.StatusCreated, code)
	return token
}

const projectPath = "/api/v2/organizations/acme/projects/shop"

func (e *testEnv) createTest(t *testing.T, token, title string) string {
	t.Helper()
	code, body := e.call(t, http.MethodPut, projectPath+"/tests", token, gin.H{
		"title":       title,
		"description": "steps for " + title,
	})
	require.Equal(t, http.StatusCreated, code)
	return body["test"].(map[string]interface{})["slug"].(string)
}

func (e *testEnv) createSuite(t *testing.T, token, title string) (suiteSlug, versionSlug string) {
	t.Helper()
	code, body := e.call(t, http.MethodPut, projectPath+"/suites", token, gin.H{
		"title":       title,
		"description": title + " flow",
	})
	require.Equal(t, http.StatusCreated, code)
	suite := body["testSuite"].(map[string]interface{})
	versions := suite["versions"].([]interface{})
	return suite["slug"].(string), versions[0].(map[string]interface{})["slug"].(string)
}

func slugsOf(items interface{}) []string {
	list, _ := items.([]interface{})
	slugs := make([]string, 0, len(list))
	for _, item := range list {
		slugs = append(slugs, item.(map[string]interface{})["slug"].(string))
	}
	return slugs
}
