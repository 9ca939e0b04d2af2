// Package options turns Asana resources into (label, value) pairs for
// pick-list fields, including fields whose choices depend on a parent
// selection such as sections of a chosen project.
package options

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
	"github.com/rflorenc/asana-automation-bridge/internal/platform"
)

// ErrUnknownKind is returned when no definition exists for a kind.
var ErrUnknownKind = errors.New("unknown option kind")

// ErrInvalidParams is returned when parent selections cannot be decoded.
var ErrInvalidParams = errors.New("invalid option params")

// Named is anything with a gid and a display name.
type Named interface {
	ID() string
	Label() string
}

// ToOptions maps items to options in input order. Items without a gid or
// a name are skipped.
func ToOptions[T Named](items []T) []models.Option {
	out := make([]models.Option, 0, len(items))
	for _, it := range items {
		if it.ID() == "" || it.Label() == "" {
			continue
		}
		out = append(out, models.Option{Label: it.Label(), Value: it.ID()})
	}
	return out
}

// Kind names a pick-list field.
type Kind string

const (
	Workspaces    Kind = "workspaces"
	Organizations Kind = "organizations"
	Projects      Kind = "projects"
	Tasks         Kind = "tasks"
	Sections      Kind = "sections"
	Tags          Kind = "tags"
	Teams         Kind = "teams"
	Users         Kind = "users"
)

// Params are the parent selections a dependent field may declare.
type Params struct {
	Workspace     string   `mapstructure:"workspace"`
	Project       string   `mapstructure:"project"`
	Organizations []string `mapstructure:"organization"`
	Team          string   `mapstructure:"team"`
}

// ResolveFunc fetches fresh resources for the given parent params.
type ResolveFunc func(ctx context.Context, client platform.Resources, p Params) ([]models.Option, error)

// Definition describes one pick-list field.
type Definition struct {
	Kind        Kind        `json:"kind"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Multiple    bool        `json:"multiple"`
	Params      []string    `json:"params,omitempty"`
	Resolve     ResolveFunc `json:"-"`
}

// Registry maps kinds to definitions.
type Registry struct {
	defs map[Kind]Definition
}

// NewRegistry returns a registry with the built-in Asana definitions.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[Kind]Definition)}
	for _, d := range builtins() {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a definition.
func (r *Registry) Register(d Definition) {
	r.defs[d.Kind] = d
}

// Lookup returns the definition for kind.
func (r *Registry) Lookup(kind Kind) (Definition, bool) {
	d, ok := r.defs[kind]
	return d, ok
}

// Definitions returns all definitions ordered by kind.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Resolve decodes the declared params out of raw and fetches options for
// kind. Every call re-queries the client; nothing from earlier calls is
// reused. Params the definition does not declare are ignored.
func (r *Registry) Resolve(ctx context.Context, client platform.Resources, kind Kind, raw map[string]any) ([]models.Option, error) {
	def, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	declared := make(map[string]any, len(def.Params))
	for _, name := range def.Params {
		if v, ok := raw[name]; ok {
			declared[name] = v
		}
	}

	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(declared); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidParams, kind, err)
	}
	return def.Resolve(ctx, client, p)
}

func builtins() []Definition {
	return []Definition{
		{
			Kind: Workspaces, Label: "Workspaces", Multiple: true,
			Description: "List of workspaces. This field uses the workspace GID.",
			Resolve: func(ctx context.Context, c platform.Resources, _ Params) ([]models.Option, error) {
				ws, err := c.GetWorkspaces(ctx)
				if err != nil {
					return nil, err
				}
				return ToOptions(ws), nil
			},
		},
		{
			Kind: Organizations, Label: "Organizations", Multiple: true,
			Description: "List of organizations. This field uses the organization GID.",
			Resolve: func(ctx context.Context, c platform.Resources, _ Params) ([]models.Option, error) {
				orgs, err := c.GetOrganizations(ctx)
				if err != nil {
					return nil, err
				}
				return ToOptions(orgs), nil
			},
		},
		{
			Kind: Projects, Label: "Projects", Multiple: true, Params: []string{"workspace"},
			Description: "List of projects, optionally limited to a workspace. This field uses the project GID.",
			Resolve: func(ctx context.Context, c platform.Resources, p Params) ([]models.Option, error) {
				projects, err := c.GetProjects(ctx, p.Workspace, nil)
				if err != nil {
					return nil, err
				}
				return ToOptions(projects), nil
			},
		},
		{
			Kind: Tasks, Label: "Tasks", Multiple: true, Params: []string{"project"},
			Description: "Tasks of the selected project. This field uses the task GID.",
			Resolve: func(ctx context.Context, c platform.Resources, p Params) ([]models.Option, error) {
				tasks, err := c.GetTasks(ctx, url.Values{"project": {p.Project}})
				if err != nil {
					return nil, err
				}
				return ToOptions(tasks), nil
			},
		},
		{
			Kind: Sections, Label: "Sections", Multiple: true, Params: []string{"project"},
			Description: "Sections of the selected project. This field uses the section GID.",
			Resolve: func(ctx context.Context, c platform.Resources, p Params) ([]models.Option, error) {
				sections, err := c.GetSections(ctx, p.Project)
				if err != nil {
					return nil, err
				}
				return ToOptions(sections), nil
			},
		},
		{
			Kind: Tags, Label: "Tags", Multiple: true,
			Description: "List of tags. This field uses the tag GID.",
			Resolve: func(ctx context.Context, c platform.Resources, _ Params) ([]models.Option, error) {
				tags, err := c.GetTags(ctx)
				if err != nil {
					return nil, err
				}
				return ToOptions(tags), nil
			},
		},
		{
			Kind: Teams, Label: "Teams", Multiple: true, Params: []string{"organization"},
			Description: "Teams of the selected organizations. This field uses the team GID.",
			Resolve: func(ctx context.Context, c platform.Resources, p Params) ([]models.Option, error) {
				teams, err := c.GetTeams(ctx, p.Organizations...)
				if err != nil {
					return nil, err
				}
				return ToOptions(teams), nil
			},
		},
		{
			Kind: Users, Label: "Users", Multiple: true, Params: []string{"workspace", "team"},
			Description: "List of users, optionally limited to a workspace or team. This field uses the user GID.",
			Resolve: func(ctx context.Context, c platform.Resources, p Params) ([]models.Option, error) {
				users, err := c.GetUsers(ctx, platform.UserFilter{Workspace: p.Workspace, Team: p.Team})
				if err != nil {
					return nil, err
				}
				return ToOptions(users), nil
			},
		},
	}
}
