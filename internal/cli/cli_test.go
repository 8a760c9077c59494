package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// memUsers is an in-memory user store covering the calls the commands make.
type memUsers struct {
	services.IUserService
	byEmail map[string]*models.User
	closed  bool
}

func newMemUsers(existing ...*models.User) *memUsers {
	m := &memUsers{byEmail: map[string]*models.User{}}
	for _, u := range existing {
		m.byEmail[u.Email] = u
	}
	return m
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, services.ErrUserNotFound
}

func (m *memUsers) CreateAdmin(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	if u, ok := m.byEmail[input.Email]; ok {
		u.Role = models.RoleAdmin
		return u, nil
	}
	if len(input.Password) < 8 {
		return nil, services.ErrWeakPassword
	}
	u := &models.User{Base: models.Base{ID: utils.NewSixID()}, Name: input.Name, Email: input.Email, Role: models.RoleAdmin}
	m.byEmail[u.Email] = u
	return u, nil
}

func (m *memUsers) Register(ctx context.Context, input services.RegisterInput) (*services.AuthResult, error) {
	if _, ok := m.byEmail[input.Email]; ok {
		return nil, services.ErrEmailExists
	}
	u := &models.User{Base: models.Base{ID: utils.NewSixID()}, Name: input.Name, Email: input.Email, Role: models.RoleSeller}
	m.byEmail[u.Email] = u
	return &services.AuthResult{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}, nil
}

func (m *memUsers) ListAdmins(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.byEmail {
		if u.IsAdmin() {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) opener() Opener {
	return func(ctx context.Context) (services.IUserService, func(), error) {
		return m, func() { m.closed = true }, nil
	}
}

func run(t *testing.T, users *memUsers, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(users.opener())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"create-admin", "users", "list-admins"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCreateAdmin(t *testing.T) {
	users := newMemUsers()
	out, err := run(t, users, "create-admin", "--email", "ops@example.com", "--password", "long-enough")
	require.NoError(t, err)
	assert.Contains(t, out, "admin ops@example.com created")
	assert.True(t, users.closed)
	assert.True(t, users.byEmail["ops@example.com"].IsAdmin())
}

func TestCreateAdminElevatesAndReadsEnvPassword(t *testing.T) {
	seller := &models.User{Base: models.Base{ID: utils.NewSixID()}, Email: "asha@example.com", Role: models.RoleSeller}
	users := newMemUsers(seller)

	t.Setenv(AdminPasswordEnv, "from-the-environment")
	out, err := run(t, users, "--format", "json", "create-admin", "--email", "asha@example.com")
	require.NoError(t, err)

	var result UserResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, UserResult{ID: seller.ID.String(), Email: "asha@example.com", Role: "admin", Status: "elevated"}, result)
}

func TestCreateAdminRequiresEmail(t *testing.T) {
	_, err := run(t, newMemUsers(), "create-admin", "--password", "long-enough")
	assert.ErrorContains(t, err, "--email")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, newMemUsers(), "--format", "xml", "list-admins")
	assert.ErrorContains(t, err, "invalid format")
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestUsersFromFile(t *testing.T) {
	existing := &models.User{Base: models.Base{ID: utils.NewSixID()}, Email: "old@example.com", Role: models.RoleSeller}
	users := newMemUsers(existing)
	path := writeSeed(t, `
admins:
  - name: Ops
    email: ops@example.com
    password: long-enough
sellers:
  - name: New Seller
    email: new@example.com
    password: whatever-1
  - name: Old Seller
    email: old@example.com
    password: whatever-2
`)

	out, err := run(t, users, "users", "--file", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^created\s+admin\s+ops@example.com$`, lines[0])
	assert.Regexp(t, `^created\s+seller\s+new@example.com$`, lines[1])
	assert.Regexp(t, `^exists\s+seller\s+old@example.com$`, lines[2])
	assert.Equal(t, models.RoleSeller, users.byEmail["old@example.com"].Role)
}

func TestUsersReportsFailures(t *testing.T) {
	path := writeSeed(t, "admins:\n  - name: Weak\n    email: weak@example.com\n    password: short\n")
	out, err := run(t, newMemUsers(), "users", "-f", path)
	assert.Error(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "weak@example.com")
}

func TestLoadSeedFile(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadSeedFile(writeSeed(t, "admin:\n  - email: typo@example.com\n"))
	assert.ErrorContains(t, err, "invalid seed file")

	seed, err := LoadSeedFile(writeSeed(t, ""))
	require.NoError(t, err)
	assert.Empty(t, seed.Admins)
	assert.Empty(t, seed.Sellers)
}

func TestUsersRequiresFile(t *testing.T) {
	_, err := run(t, newMemUsers(), "users")
	assert.ErrorContains(t, err, "file")
}
