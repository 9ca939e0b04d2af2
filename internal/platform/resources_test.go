package platform

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrganizations(t *testing.T) {
	f := newFixture().
		on("GET", "/workspaces", `{"data":[{"gid":"1","name":"Personal"},{"gid":"2","name":"Acme"},{"gid":"3","name":"Beta"}]}`).
		on("GET", "/workspaces/1", `{"data":{"gid":"1","name":"Personal","is_organization":false}}`).
		on("GET", "/workspaces/2", `{"data":{"gid":"2","name":"Acme","is_organization":true}}`).
		on("GET", "/workspaces/3", `{"data":{"gid":"3","name":"Beta","is_organization":true}}`)
	c := newTestClient(t, f)

	orgs, err := c.GetOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "2", orgs[0].GID)
	assert.Equal(t, "3", orgs[1].GID)
	assert.True(t, orgs[0].IsOrganization)

	// one list call, then one detail fetch per workspace in list order
	assert.Equal(t, []string{
		"GET /workspaces",
		"GET /workspaces/1",
		"GET /workspaces/2",
		"GET /workspaces/3",
	}, f.paths())
}

func TestGetOrganizations_DetailErrorPropagates(t *testing.T) {
	f := newFixture().
		on("GET", "/workspaces", `{"data":[{"gid":"1","name":"A"}]}`).
		fail("GET", "/workspaces/1", http.StatusForbidden, `{"errors":[{"message":"Forbidden"}]}`)
	c := newTestClient(t, f)

	_, err := c.GetOrganizations(context.Background())
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
}

func TestGetProjects_Query(t *testing.T) {
	f := newFixture().on("GET", "/projects", `{"data":[{"gid":"222","name":"Launch"}]}`)
	c := newTestClient(t, f)

	projects, err := c.GetProjects(context.Background(), "111", url.Values{"archived": {"false"}})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Launch", projects[0].Name)
	assert.Equal(t, "111", f.last().Query.Get("workspace"))
	assert.Equal(t, "false", f.last().Query.Get("archived"))

	_, err = c.GetProjects(context.Background(), "", nil)
	require.NoError(t, err)
	_, has := f.last().Query["workspace"]
	assert.False(t, has, "empty workspace must not be sent")
}

func TestGetTasks_ForwardsParams(t *testing.T) {
	f := newFixture().on("GET", "/tasks", `{"data":[{"gid":"9","name":"Write docs"}]}`)
	c := newTestClient(t, f)

	tasks, err := c.GetTasks(context.Background(), url.Values{"project": {"222"}})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, "222", f.last().Query.Get("project"))
}

func TestGetSections_MissingDataIsEmpty(t *testing.T) {
	f := newFixture().on("GET", "/projects/222/sections", `{}`)
	c := newTestClient(t, f)

	sections, err := c.GetSections(context.Background(), "222")
	require.NoError(t, err)
	assert.NotNil(t, sections)
	assert.Empty(t, sections)
}

func TestGetSections_MissingProjectIsRemoteError(t *testing.T) {
	c := newTestClient(t, newFixture())

	_, err := c.GetSections(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTeams_ScalarEqualsCollection(t *testing.T) {
	f := newFixture().
		on("GET", "/organizations/10/teams", `{"data":[{"gid":"t1","name":"Design"}]}`).
		on("GET", "/organizations/20/teams", `{"data":[{"gid":"t2","name":"Ops"},{"gid":"t3","name":"Sales"}]}`)
	c := newTestClient(t, f)
	ctx := context.Background()

	single, err := c.GetTeams(ctx, "10")
	require.NoError(t, err)
	ids := []string{"10"}
	asSlice, err := c.GetTeams(ctx, ids...)
	require.NoError(t, err)
	assert.Equal(t, single, asSlice)

	both, err := c.GetTeams(ctx, "20", "10")
	require.NoError(t, err)
	got := []string{}
	for _, team := range both {
		got = append(got, team.GID)
	}
	assert.Equal(t, []string{"t2", "t3", "t1"}, got)
}

func TestGetUsers_Filter(t *testing.T) {
	f := newFixture().on("GET", "/users", `{"data":[{"gid":"u1","name":"Ada"}]}`)
	c := newTestClient(t, f)

	users, err := c.GetUsers(context.Background(), UserFilter{Workspace: "111"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "111", f.last().Query.Get("workspace"))
	assert.Empty(t, f.last().Query.Get("team"))
}

func TestSingleEntityFetches(t *testing.T) {
	f := newFixture().
		on("GET", "/workspaces/111", `{"data":{"gid":"111","name":"Acme","is_organization":true}}`).
		on("GET", "/projects/222", `{"data":{"gid":"222","name":"Launch"}}`).
		on("GET", "/tasks/333", `{"data":{"gid":"333","name":"Ship","completed":true}}`).
		on("GET", "/stories/444", `{"data":{"gid":"444","text":"moved"}}`).
		on("GET", "/tags/555", `{"data":{"gid":"555","name":"urgent"}}`).
		on("GET", "/teams/666", `{"data":{"gid":"666","name":"Ops"}}`).
		on("GET", "/users/777", `{"data":{"gid":"777","name":"Ada"}}`).
		on("GET", "/users/me", `{"data":{"gid":"1","name":"Me"}}`)
	c := newTestClient(t, f)
	ctx := context.Background()

	ws, err := c.GetWorkspace(ctx, "111")
	require.NoError(t, err)
	assert.True(t, ws.IsOrganization)

	p, err := c.GetProject(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, "Launch", p.Name)

	task, err := c.GetTask(ctx, "333")
	require.NoError(t, err)
	assert.True(t, task.Completed)

	story, err := c.GetStory(ctx, "444")
	require.NoError(t, err)
	assert.Equal(t, "moved", story.Text)

	tag, err := c.GetTag(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, "urgent", tag.Name)

	team, err := c.GetTeam(ctx, "666")
	require.NoError(t, err)
	assert.Equal(t, "Ops", team.Name)

	user, err := c.GetUser(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Me", me.Name)
}
