package models

// Resource is the shape every Asana object shares: a gid and a display name.
type Resource struct {
	GID          string `json:"gid"`
	Name         string `json:"name,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
}

// ID returns the resource gid.
func (r Resource) ID() string { return r.GID }

// Label returns the resource name.
func (r Resource) Label() string { return r.Name }

// Workspace is an Asana workspace. Organizations are workspaces with
// IsOrganization set; the list endpoint omits the flag.
type Workspace struct {
	Resource
	IsOrganization bool     `json:"is_organization"`
	EmailDomains   []string `json:"email_domains,omitempty"`
}

type Project struct {
	Resource
	Archived  bool      `json:"archived,omitempty"`
	Color     string    `json:"color,omitempty"`
	Workspace *Resource `json:"workspace,omitempty"`
	Team      *Resource `json:"team,omitempty"`
}

type Section struct {
	Resource
	Project *Resource `json:"project,omitempty"`
}

type Task struct {
	Resource
	Completed   bool       `json:"completed,omitempty"`
	DueOn       string     `json:"due_on,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Assignee    *Resource  `json:"assignee,omitempty"`
	Projects    []Resource `json:"projects,omitempty"`
	Memberships []struct {
		Project *Resource `json:"project,omitempty"`
		Section *Resource `json:"section,omitempty"`
	} `json:"memberships,omitempty"`
}

type Story struct {
	Resource
	Text      string    `json:"text,omitempty"`
	Type      string    `json:"type,omitempty"`
	CreatedAt string    `json:"created_at,omitempty"`
	CreatedBy *Resource `json:"created_by,omitempty"`
}

type Tag struct {
	Resource
	Color     string    `json:"color,omitempty"`
	Workspace *Resource `json:"workspace,omitempty"`
}

type Team struct {
	Resource
	Description  string    `json:"description,omitempty"`
	Organization *Resource `json:"organization,omitempty"`
}

type User struct {
	Resource
	Email      string     `json:"email,omitempty"`
	Workspaces []Resource `json:"workspaces,omitempty"`
}

// Webhook is a server-side subscription delivering events for Resource to Target.
// Secret is only populated after a successful handshake.
type Webhook struct {
	GID       string   `json:"gid"`
	Resource  Resource `json:"resource"`
	Target    string   `json:"target"`
	Active    bool     `json:"active"`
	CreatedAt string   `json:"created_at,omitempty"`
	Secret    string   `json:"-"`
}

// Option is a (label, value) pair used to populate a selectable field.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
