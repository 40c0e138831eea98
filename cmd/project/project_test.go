package project

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/testing/mocks"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestNewCmdProject(t *testing.T) {
	cmd := NewCmdProject()

	assert.Equal(t, "project", cmd.Use)
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"add", "list", "remove", "show"}, names)
}

func TestProjectAdd(t *testing.T) {
	app.SetConfigForTesting(&config.Config{BaseHost: "example.com"})
	alice := domain.NewUser("alice", false)
	app.SetUserServiceForTesting(&mocks.MockUserManager{
		GetByUsernameFunc: func(username string) (*domain.User, error) {
			assert.Equal(t, "alice", username)
			return &alice, nil
		},
	})
	app.SetProjectServiceForTesting(&mocks.MockProjectManager{
		CreateFunc: func(_ context.Context, owner *domain.User, rawDomain string) (*domain.Project, error) {
			assert.Equal(t, alice.ID, owner.ID)
			assert.Equal(t, "demo1.example.com", rawDomain)
			p := domain.NewProject(rawDomain, owner.ID, "s3cret")
			p.Owner = owner
			return &p, nil
		},
	})

	out, err := execute(t, NewCmdProjectAdd(), "", "demo1", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "demo1.example.com")
	assert.Contains(t, out, "s3cret")
}

func TestProjectAdd_FromTitle(t *testing.T) {
	app.SetConfigForTesting(&config.Config{BaseHost: "example.com"})
	app.SetUserServiceForTesting(&mocks.MockUserManager{})

	var got string
	app.SetProjectServiceForTesting(&mocks.MockProjectManager{
		CreateFunc: func(_ context.Context, owner *domain.User, rawDomain string) (*domain.Project, error) {
			got = rawDomain
			p := domain.NewProject(rawDomain, owner.ID, "s3cret")
			return &p, nil
		},
	})

	_, err := execute(t, NewCmdProjectAdd(), "", "--user", "alice", "--title", "My Shiny Demo!")
	require.NoError(t, err)
	assert.Equal(t, "my-shiny-demo.example.com", got)

	_, err = execute(t, NewCmdProjectAdd(), "", "--user", "alice", "--title", "!!")
	assert.ErrorContains(t, err, "usable --title")
}

func TestProjectAdd_RequiresUser(t *testing.T) {
	_, err := execute(t, NewCmdProjectAdd(), "", "demo1")
	assert.Error(t, err)
}

func TestProjectAdd_CreateFails(t *testing.T) {
	app.SetUserServiceForTesting(&mocks.MockUserManager{})
	app.SetProjectServiceForTesting(&mocks.MockProjectManager{
		CreateFunc: func(context.Context, *domain.User, string) (*domain.Project, error) {
			return nil, domain.ErrDomainInUse
		},
	})

	_, err := execute(t, NewCmdProjectAdd(), "", "demo1.example.com", "-u", "alice")
	assert.ErrorIs(t, err, domain.ErrDomainInUse)
}

func TestProjectList(t *testing.T) {
	alice := domain.NewUser("alice", false)
	p := domain.NewProject("demo1.example.com", alice.ID, "s3cret")
	p.Owner = &alice

	var gotCaller *domain.User
	app.SetUserServiceForTesting(&mocks.MockUserManager{
		GetByUsernameFunc: func(string) (*domain.User, error) { return &alice, nil },
	})
	app.SetProjectServiceForTesting(&mocks.MockProjectManager{
		ListFunc: func(caller *domain.User) ([]*domain.Project, error) {
			gotCaller = caller
			return []*domain.Project{&p}, nil
		},
	})

	out, err := execute(t, NewCmdProjectList(), "")
	require.NoError(t, err)
	assert.Nil(t, gotCaller)
	assert.Contains(t, out, "demo1.example.com")
	assert.Contains(t, out, "alice")

	out, err = execute(t, NewCmdProjectList(), "", "--as", "alice")
	require.NoError(t, err)
	require.NotNil(t, gotCaller)
	assert.Equal(t, "alice", gotCaller.Username)
	assert.NotContains(t, out, "alice")
}

func TestProjectShow_ByDomainAndID(t *testing.T) {
	p := domain.NewProject("demo1.example.com", uuid.New(), "s3cret")
	app.SetProjectServiceForTesting(&mocks.MockProjectManager{
		GetFunc: func(id uuid.UUID) (*domain.Project, error) {
			if id != p.ID {
				return nil, domain.ErrProjectNotFound
			}
			return &p, nil
		},
		GetByDomainFunc: func(domainName string) (*domain.Project, error) {
			if domainName != p.Domain {
				return nil, domain.ErrProjectNotFound
			}
			return &p, nil
		},
	})

	out, err := execute(t, NewCmdProjectShow(), "", p.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "demo1.example.com")

	out, err = execute(t, NewCmdProjectShow(), "", "demo1.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, p.ID.String())

	_, err = execute(t, NewCmdProjectShow(), "", "missing.example.com")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestProjectRemove(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		removed bool
		output  string
	}{
		{"confirm flag", "", []string{"demo1.example.com", "--confirm"}, true, "removed successfully"},
		{"typed domain", "demo1.example.com\n", []string{"demo1.example.com"}, true, "removed successfully"},
		{"wrong answer", "nope\n", []string{"demo1.example.com"}, false, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			removed := false
			app.SetProjectServiceForTesting(&mocks.MockProjectManager{
				RemoveFunc: func(context.Context, uuid.UUID) error {
					removed = true
					return nil
				},
			})

			out, err := execute(t, NewCmdProjectRemove(), tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.removed, removed)
			assert.Contains(t, out, tt.output)
		})
	}
}

func TestProjectRemove_Fails(t *testing.T) {
	app.SetProjectServiceForTesting(&mocks.MockProjectManager{
		RemoveFunc: func(context.Context, uuid.UUID) error {
			return errors.New("nginx reload failed")
		},
	})

	_, err := execute(t, NewCmdProjectRemove(), "", "demo1.example.com", "-y")
	assert.ErrorContains(t, err, "failed to remove project")
}
