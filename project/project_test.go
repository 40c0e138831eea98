package project

import (
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/demos-sh/demos/cache"
	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/connection"
	"github.com/demos-sh/demos/db"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/encryption"
	"github.com/demos-sh/demos/ports"
	"github.com/demos-sh/demos/render"
	"github.com/demos-sh/demos/repository"
	"github.com/demos-sh/demos/sshd"
	"github.com/demos-sh/demos/system"
	"github.com/demos-sh/demos/validation"
	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	service  *ProjectService
	users    repository.UserRepository
	projects repository.ProjectRepository
	runner   *system.RecordingRunner
	renderer *render.Renderer
	keys     *sshd.Provisioner
	store    *cache.MemoryStore
	cfg      *config.Config
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.InitDatabase(db.DBConfig{Path: ":memory:", LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAll(database))

	var key fernet.Key
	_, err = rand.Read(key[:])
	require.NoError(t, err)
	enc, err := encryption.NewEncryptionService(key.Encode())
	require.NoError(t, err)

	tmp := t.TempDir()
	cfg := &config.Config{
		BaseHost:             "example.com",
		SubdomainExcludeList: []string{"www", "admin-*"},
		KeyTTL:               time.Hour,
	}

	users := repository.NewUserRepository(database)
	projects := repository.NewProjectRepository(database, enc)
	runner := system.NewRecordingRunner()
	renderer := render.NewRenderer(runner, render.Options{
		VhostDir: filepath.Join(tmp, "sites"),
		PageDir:  filepath.Join(tmp, "www"),
		BaseHost: cfg.BaseHost,
	})
	keys := sshd.NewProvisioner(runner, sshd.Options{
		DropInDir: filepath.Join(tmp, "sshd"),
		HomeRoot:  filepath.Join(tmp, "home"),
		Excluded:  []string{"root"},
	})
	store := cache.NewMemoryStore()
	allocator := ports.NewAllocator(store, ports.Options{
		RangeStart: 20000,
		RangeEnd:   20009,
		Probe:      func(context.Context, int) bool { return false },
	})
	lifecycle := connection.NewLifecycle(projects, store, allocator, renderer, nil, connection.Options{
		KeepAliveTimeout: time.Hour,
	})
	t.Cleanup(lifecycle.Stop)

	svc := NewProjectService(projects, users, renderer, keys, lifecycle, cfg)
	t.Cleanup(func() { svc.Stop(context.Background()) })

	return &testEnv{
		service:  svc,
		users:    users,
		projects: projects,
		runner:   runner,
		renderer: renderer,
		keys:     keys,
		store:    store,
		cfg:      cfg,
	}
}

func (e *testEnv) createUser(t *testing.T, username string, superuser bool) *domain.User {
	t.Helper()
	u := domain.NewUser(username, superuser)
	created, err := e.users.Create(&u)
	require.NoError(t, err)
	return created
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestProjectService_Create(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.createUser(t, "alice", false)

	p, err := env.service.Create(context.Background(), owner, "  Demo1.Example.com ")
	require.NoError(t, err)

	assert.Equal(t, "demo1.example.com", p.Domain)
	assert.Equal(t, domain.ConnectionStatePlaceholder, p.State)
	assert.Len(t, p.SecretKey, 43)
	assert.FileExists(t, env.renderer.PagePath(p.Domain))
	assert.Contains(t, readFile(t, env.renderer.VhostPath(p.Domain)), "return 502;")
	assert.Equal(t, 1, env.runner.Count("service nginx reload"))

	stored, err := env.service.GetByDomain("demo1.example.com")
	require.NoError(t, err)
	assert.Equal(t, p.SecretKey, stored.SecretKey)
	assert.Equal(t, "alice", stored.OwnerUsername())
}

func TestProjectService_Create_Validation(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.createUser(t, "alice", false)

	tests := []struct {
		name string
		raw  string
		rule string
	}{
		{"wrong base host", "demo1.example.org", validation.RuleSuffix},
		{"bad label", "-x.example.com", validation.RuleFormat},
		{"excluded", "www.example.com", validation.RuleExcluded},
		{"excluded pattern", "admin-panel.example.com", validation.RuleExcluded},
		{"empty", "", validation.RuleRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Create(context.Background(), owner, tt.raw)
			var verr *validation.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.rule, verr.Rule)
		})
	}

	assert.Empty(t, env.runner.Commands())
}

func TestProjectService_Create_OneProjectPerUser(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.createUser(t, "alice", false)
	admin := env.createUser(t, "root", true)

	_, err := env.service.Create(context.Background(), owner, "demo1.example.com")
	require.NoError(t, err)

	_, err = env.service.Create(context.Background(), owner, "demo2.example.com")
	assert.ErrorIs(t, err, domain.ErrProjectLimit)

	for _, d := range []string{"one.example.com", "two.example.com"} {
		_, err := env.service.Create(context.Background(), admin, d)
		require.NoError(t, err)
	}
}

func TestProjectService_Create_DuplicateDomain(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "root", true)

	_, err := env.service.Create(context.Background(), admin, "demo1.example.com")
	require.NoError(t, err)

	_, err = env.service.Create(context.Background(), admin, "demo1.example.com")
	assert.ErrorIs(t, err, domain.ErrDomainInUse)
}

func TestProjectService_Create_RollsBackWhenReloadFails(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.createUser(t, "alice", false)
	env.runner.FailOn("service nginx reload", errors.New("exit status 1"))

	_, err := env.service.Create(context.Background(), owner, "demo1.example.com")
	require.Error(t, err)

	_, err = env.service.GetByDomain("demo1.example.com")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	assert.NoFileExists(t, env.renderer.VhostPath("demo1.example.com"))
	assert.NoFileExists(t, env.renderer.PagePath("demo1.example.com"))
}

func TestProjectService_List(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)

	_, err := env.service.Create(context.Background(), alice, "alice.example.com")
	require.NoError(t, err)
	_, err = env.service.Create(context.Background(), bob, "bob.example.com")
	require.NoError(t, err)

	all, err := env.service.List(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := env.service.List(alice)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "alice.example.com", own[0].Domain)
}

func TestProjectService_Remove(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.createUser(t, "alice", false)
	p, err := env.service.Create(context.Background(), owner, "demo1.example.com")
	require.NoError(t, err)

	require.NoError(t, env.service.Remove(context.Background(), p.ID))

	assert.NoFileExists(t, env.renderer.VhostPath(p.Domain))
	assert.NoDirExists(t, env.renderer.PageRoot(p.Domain))
	_, err = env.service.Get(p.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	err = env.service.Remove(context.Background(), p.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestProjectService_ConnectDisconnect(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice", false)
	p, err := env.service.Create(ctx, owner, "demo1.example.com")
	require.NoError(t, err)

	info, err := env.service.ConnectionInfo(ctx, p.Domain)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.User)
	assert.Equal(t, 20000, info.Port)

	require.NoError(t, env.service.Connect(ctx, p.Domain, p.SecretKey, info.Port))
	assert.Contains(t, readFile(t, env.renderer.VhostPath(p.Domain)), "proxy_pass http://localhost:20000;")

	require.NoError(t, env.service.KeepAlive(ctx, p.Domain))

	stored, err := env.service.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStateConnected, stored.State)
	assert.Equal(t, 20000, stored.Port)
	assert.NotNil(t, stored.LastConnectedAt)

	require.NoError(t, env.service.Disconnect(ctx, p.Domain, p.SecretKey))
	assert.Contains(t, readFile(t, env.renderer.VhostPath(p.Domain)), "return 502;")
}

func TestProjectService_Connect_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice", false)
	p, err := env.service.Create(ctx, owner, "demo1.example.com")
	require.NoError(t, err)
	info, err := env.service.ConnectionInfo(ctx, p.Domain)
	require.NoError(t, err)

	vhostBefore := readFile(t, env.renderer.VhostPath(p.Domain))
	env.runner.Reset()

	err = env.service.Connect(ctx, p.Domain, "wrong", info.Port)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = env.service.Connect(ctx, p.Domain, p.SecretKey, info.Port+1)
	assert.ErrorIs(t, err, domain.ErrPortNotLeased)

	err = env.service.Connect(ctx, "missing.example.com", p.SecretKey, info.Port)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	err = env.service.Disconnect(ctx, p.Domain, "wrong")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Equal(t, vhostBefore, readFile(t, env.renderer.VhostPath(p.Domain)))
	assert.Empty(t, env.runner.Commands())
}

func TestProjectService_KeyFile(t *testing.T) {
	env := setupTestEnv(t)
	env.cfg.KeyTTL = 50 * time.Millisecond
	ctx := context.Background()
	owner := env.createUser(t, "alice", false)
	p, err := env.service.Create(ctx, owner, "demo1.example.com")
	require.NoError(t, err)

	_, err = env.service.KeyFile(ctx, p.Domain, "wrong")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	key, err := env.service.KeyFile(ctx, p.Domain, p.SecretKey)
	require.NoError(t, err)
	assert.Contains(t, string(key), "BEGIN OPENSSH PRIVATE KEY")

	authorized := env.keys.AuthorizedKeysPath("alice")
	assert.Contains(t, readFile(t, authorized), "ssh-ed25519 ")

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(authorized)
		return err == nil && len(data) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProjectService_KeyFile_SuperuserHasNoAccount(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", true)
	p, err := env.service.Create(ctx, admin, "demo1.example.com")
	require.NoError(t, err)

	_, err = env.service.KeyFile(ctx, p.Domain, p.SecretKey)
	assert.ErrorIs(t, err, domain.ErrNoSSHAccount)
}

func TestProjectService_StopRevokesPendingKeys(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "alice", false)
	p, err := env.service.Create(ctx, owner, "demo1.example.com")
	require.NoError(t, err)

	_, err = env.service.KeyFile(ctx, p.Domain, p.SecretKey)
	require.NoError(t, err)
	authorized := env.keys.AuthorizedKeysPath("alice")
	require.NotEmpty(t, readFile(t, authorized))

	env.service.Stop(ctx)
	assert.Empty(t, readFile(t, authorized))
}

func TestProjectService_RegenerateConfig(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", true)

	p, err := env.service.Create(ctx, admin, "demo1.example.com")
	require.NoError(t, err)
	connected, err := env.service.Create(ctx, admin, "live.example.com")
	require.NoError(t, err)
	info, err := env.service.ConnectionInfo(ctx, connected.Domain)
	require.NoError(t, err)
	require.NoError(t, env.service.Connect(ctx, connected.Domain, connected.SecretKey, info.Port))

	require.NoError(t, os.Remove(env.renderer.VhostPath(p.Domain)))

	results := env.service.RegenerateConfig(ctx)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Name)
	}

	assert.Contains(t, readFile(t, env.renderer.VhostPath(p.Domain)), "return 502;")
	assert.Contains(t, readFile(t, env.renderer.VhostPath(connected.Domain)), "proxy_pass http://localhost:20000;")
}

func TestProjectService_RegenerateConfig_NewBaseHost(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", true)

	p, err := env.service.Create(ctx, admin, "demo1.example.com")
	require.NoError(t, err)

	env.cfg.BaseHost = "demos.dev"
	results := env.service.RegenerateConfig(ctx)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "demo1.demos.dev", results[0].Name)

	moved, err := env.service.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo1.demos.dev", moved.Domain)
	assert.NoFileExists(t, env.renderer.VhostPath("demo1.example.com"))
	assert.FileExists(t, env.renderer.VhostPath("demo1.demos.dev"))
	assert.FileExists(t, env.renderer.PagePath("demo1.demos.dev"))
}

func TestFormatErrorForUser(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"not found", &domain.ProjectError{Domain: "x", Op: "connect", Err: domain.ErrProjectNotFound}, "project not found"},
		{"forbidden", domain.ErrForbidden, "invalid secret_key"},
		{"port", domain.ErrPortNotLeased, "port not available"},
		{"validation", &validation.ValidationError{Field: "domain", Message: "This subdomain is not allowed."}, "This subdomain is not allowed."},
		{"nginx", errors.New("failed to reload nginx for x: exit status 1"), "failed to apply proxy configuration"},
		{"timeout", context.DeadlineExceeded, "operation timed out"},
		{"other", errors.New("boom"), "an unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatErrorForUser(tt.err))
		})
	}
}
