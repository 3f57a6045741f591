package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/elitedynamics/stepflow/internal/domain"
)

// Templates holds the catalog of predefined, named workflows. Invoking a
// workflow by name is equivalent to invoking its expanded definition.
type Templates struct {
	mu   sync.RWMutex
	defs map[string]*domain.Definition
}

// NewTemplates creates an empty template catalog.
func NewTemplates() *Templates {
	return &Templates{defs: make(map[string]*domain.Definition)}
}

// Register adds a template under its definition ID.
func (t *Templates) Register(def *domain.Definition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("template requires a workflow ID")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.defs[def.ID]; exists {
		return fmt.Errorf("duplicate template: %s", def.ID)
	}
	t.defs[def.ID] = def
	return nil
}

// Expand returns a deep copy of the named template, so runs never mutate
// the registered original.
func (t *Templates) Expand(name string) (*domain.Definition, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.defs[name]
	if !ok {
		return nil, fmt.Errorf("unknown workflow template: %s", name)
	}
	return def.Clone(), nil
}

// Names lists registered template names, sorted.
func (t *Templates) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.defs))
	for name := range t.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultTemplates returns the built-in workflow catalog. Each template is
// a fixed definition over catalog actions; deployments that do not register
// those actions simply cannot submit the template (validation rejects it).
func DefaultTemplates() []*domain.Definition {
	return []*domain.Definition{
		{
			ID:   "full_backup",
			Name: "Full platform backup",
			Steps: []domain.Step{
				{ID: "sharepoint", Action: "sharepoint.get_site_info", SaveTo: "sharepoint_status"},
				{ID: "onedrive", Action: "onedrive.list_items", Params: map[string]interface{}{"path": "/"}, SaveTo: "onedrive_files"},
				{ID: "notion", Action: "notion.search", Params: map[string]interface{}{"query": ""}, SaveTo: "notion_pages"},
				{ID: "email", Action: "email.list_messages", Params: map[string]interface{}{"top": 50}, SaveTo: "recent_emails"},
				{
					ID:     "archive",
					Action: "backup.save",
					Params: map[string]interface{}{
						"sharepoint": "${sharepoint.output}",
						"onedrive":   "${onedrive.output}",
						"notion":     "${notion.output}",
						"email":      "${email.output}",
					},
					DependsOn: []string{"sharepoint", "onedrive", "notion", "email"},
				},
			},
		},
		{
			ID:   "marketing_sync",
			Name: "Marketing platform sync",
			Steps: []domain.Step{
				{ID: "google", Action: "googleads.get_campaigns", SaveTo: "google_campaigns"},
				{ID: "meta", Action: "metaads.list_campaigns", SaveTo: "meta_campaigns"},
				{ID: "hubspot", Action: "hubspot.get_deals", SaveTo: "hubspot_deals"},
				{
					ID:     "dashboard",
					Action: "notion.create_page",
					Params: map[string]interface{}{
						"database": "Marketing Dashboard",
						"properties": map[string]interface{}{
							"google_campaigns": "${google.output.total}",
							"meta_campaigns":   "${meta.output.total}",
							"hubspot_deals":    "${hubspot.output.total}",
						},
					},
					DependsOn: []string{"google", "meta", "hubspot"},
				},
			},
		},
		{
			ID:   "content_creation",
			Name: "Content creation and distribution",
			Steps: []domain.Step{
				{ID: "post", Action: "wordpress.create_post", SaveTo: "new_post"},
				{
					ID:        "upload",
					Action:    "onedrive.upload_file",
					Params:    map[string]interface{}{"content": "${post.output.content}", "filename": "${post.output.slug}.html"},
					DependsOn: []string{"post"},
				},
				{
					ID:        "announce",
					Action:    "teams.send_channel_message",
					Params:    map[string]interface{}{"message": "New post published: ${post.output.url}"},
					DependsOn: []string{"post"},
				},
			},
		},
	}
}
