package platform

import (
	"context"
	"net/url"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
)

// UserFilter narrows GetUsers. Empty fields are not sent.
type UserFilter struct {
	Workspace string
	Team      string
}

// GetWorkspace fetches one workspace, including is_organization.
func (c *Client) GetWorkspace(ctx context.Context, workspaceID string) (*models.Workspace, error) {
	return getOne[models.Workspace](ctx, c, "workspaces/"+workspaceID, RequestOptions{})
}

// GetWorkspaces lists the workspaces visible to the token.
func (c *Client) GetWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	return getList[models.Workspace](ctx, c, "workspaces", RequestOptions{})
}

// GetOrganizations returns the workspaces flagged as organizations. The list
// endpoint does not carry is_organization, so every workspace is fetched
// again by gid, one at a time and in list order.
func (c *Client) GetOrganizations(ctx context.Context) ([]models.Workspace, error) {
	workspaces, err := c.GetWorkspaces(ctx)
	if err != nil {
		return nil, err
	}

	orgs := []models.Workspace{}
	for _, ws := range workspaces {
		detail, err := c.GetWorkspace(ctx, ws.GID)
		if err != nil {
			return nil, err
		}
		if detail != nil && detail.IsOrganization {
			orgs = append(orgs, *detail)
		}
	}
	return orgs, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return getOne[models.Project](ctx, c, "projects/"+projectID, RequestOptions{})
}

// GetProjects lists projects, optionally filtered by workspace. extra is
// merged into the query as-is.
func (c *Client) GetProjects(ctx context.Context, workspaceID string, extra url.Values) ([]models.Project, error) {
	q := url.Values{}
	if workspaceID != "" {
		q.Set("workspace", workspaceID)
	}
	for k, vs := range extra {
		q[k] = append([]string(nil), vs...)
	}
	return getList[models.Project](ctx, c, "projects", RequestOptions{Query: q})
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return getOne[models.Task](ctx, c, "tasks/"+taskID, RequestOptions{})
}

// GetTasks lists tasks matching params, e.g. {"project": {gid}}. No default
// filter is applied.
func (c *Client) GetTasks(ctx context.Context, params url.Values) ([]models.Task, error) {
	return getList[models.Task](ctx, c, "tasks", RequestOptions{Query: params})
}

// GetSections lists the sections of a project in remote order.
func (c *Client) GetSections(ctx context.Context, projectID string) ([]models.Section, error) {
	return getList[models.Section](ctx, c, "projects/"+projectID+"/sections", RequestOptions{})
}

// GetStory fetches one story.
func (c *Client) GetStory(ctx context.Context, storyID string) (*models.Story, error) {
	return getOne[models.Story](ctx, c, "stories/"+storyID, RequestOptions{})
}

// GetTag fetches one tag.
func (c *Client) GetTag(ctx context.Context, tagID string) (*models.Tag, error) {
	return getOne[models.Tag](ctx, c, "tags/"+tagID, RequestOptions{})
}

// GetTags lists the tags visible to the token.
func (c *Client) GetTags(ctx context.Context) ([]models.Tag, error) {
	return getList[models.Tag](ctx, c, "tags", RequestOptions{})
}

// GetTeam fetches one team.
func (c *Client) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	return getOne[models.Team](ctx, c, "teams/"+teamID, RequestOptions{})
}

// GetTeams lists the teams of each organization gid and concatenates them
// in argument order. Teams are organization scoped: passing a plain
// workspace gid yields a remote error.
func (c *Client) GetTeams(ctx context.Context, organizationIDs ...string) ([]models.Team, error) {
	teams := []models.Team{}
	for _, orgID := range organizationIDs {
		page, err := getList[models.Team](ctx, c, "organizations/"+orgID+"/teams", RequestOptions{})
		if err != nil {
			return nil, err
		}
		teams = append(teams, page...)
	}
	return teams, nil
}

// GetUser fetches one user; "me" names the token owner.
func (c *Client) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return getOne[models.User](ctx, c, "users/"+userID, RequestOptions{})
}

// GetUsers lists users, narrowed by filter.
func (c *Client) GetUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	q := url.Values{}
	if filter.Workspace != "" {
		q.Set("workspace", filter.Workspace)
	}
	if filter.Team != "" {
		q.Set("team", filter.Team)
	}
	return getList[models.User](ctx, c, "users", RequestOptions{Query: q})
}

// Me returns the user the access token belongs to. Used to check credentials.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	return c.GetUser(ctx, "me")
}
