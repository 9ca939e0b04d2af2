// Package platform is the Asana REST client: request construction, the
// HTTP transport, typed resource fetches and webhook registration.
package platform

import (
	"context"
	"net/url"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
)

// Resources is the read surface consumed by option resolution.
type Resources interface {
	GetWorkspaces(ctx context.Context) ([]models.Workspace, error)
	GetOrganizations(ctx context.Context) ([]models.Workspace, error)
	GetProjects(ctx context.Context, workspaceID string, extra url.Values) ([]models.Project, error)
	GetTasks(ctx context.Context, params url.Values) ([]models.Task, error)
	GetSections(ctx context.Context, projectID string) ([]models.Section, error)
	GetTags(ctx context.Context) ([]models.Tag, error)
	GetTeams(ctx context.Context, organizationIDs ...string) ([]models.Team, error)
	GetUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
}

// Hooks is the webhook surface used by the registration protocol.
type Hooks interface {
	CreateHook(ctx context.Context, req HookRequest) (*models.Webhook, error)
	DeleteHook(ctx context.Context, hookID string)
}

var (
	_ Resources = (*Client)(nil)
	_ Hooks     = (*Client)(nil)
)
