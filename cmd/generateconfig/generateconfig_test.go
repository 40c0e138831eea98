package generateconfig

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/project"
	"github.com/demos-sh/demos/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(accounts, projects []project.ItemResult) *int {
	order := 0
	calls := new(int)
	app.SetUserServiceForTesting(&mocks.MockUserManager{
		ReprovisionAccountsFunc: func(context.Context) []project.ItemResult {
			order++
			*calls = order
			return accounts
		},
	})
	app.SetProjectServiceForTesting(&mocks.MockProjectManager{
		RegenerateConfigFunc: func(context.Context) []project.ItemResult {
			order++
			return projects
		},
	})
	return calls
}

func TestGenerateConfig(t *testing.T) {
	accountsCall := setup(
		[]project.ItemResult{{Name: "alice"}},
		[]project.ItemResult{{Name: "demo1.example.com"}},
	)

	var buf bytes.Buffer
	cmd := NewCmdGenerateConfig()
	cmd.SetOut(&buf)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, 1, *accountsCall, "accounts are reprovisioned before projects")
	assert.Contains(t, buf.String(), "alice")
	assert.Contains(t, buf.String(), "demo1.example.com")
	assert.Contains(t, buf.String(), "Configuration regenerated")
}

func TestGenerateConfig_ReportsFailuresAndContinues(t *testing.T) {
	setup(
		[]project.ItemResult{{Name: "alice", Err: errors.New("useradd failed")}, {Name: "bob"}},
		[]project.ItemResult{{Name: "demo1.example.com"}},
	)

	var buf bytes.Buffer
	cmd := NewCmdGenerateConfig()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	err := cmd.Execute()
	assert.EqualError(t, err, "1 item(s) failed")
	assert.Contains(t, buf.String(), "FAILED alice: useradd failed")
	assert.Contains(t, buf.String(), "OK     bob")
	assert.Contains(t, buf.String(), "OK     demo1.example.com")
}
