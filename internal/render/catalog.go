package render

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrTemplateNotFound is returned for unknown template IDs.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrBuiltinTemplate is returned when a caller tries to delete or
	// overwrite a built-in template.
	ErrBuiltinTemplate = errors.New("built-in templates are read-only")

	// ErrMissingVariables is returned when instantiation lacks required
	// variables.
	ErrMissingVariables = errors.New("missing template variables")
)

// TemplateDefinition is a reusable contract skeleton. Section text may
// reference variables as {{var.name}}; every referenced variable must be
// supplied at instantiation.
type TemplateDefinition struct {
	ID          string
	Name        string
	Type        models.TemplateType
	Description string
	Variables   []string
	Content     models.ContractContent

	// OwnerID is set on custom templates only.
	OwnerID *uuid.UUID
}

// Builtin reports whether the template ships with the catalog.
func (t *TemplateDefinition) Builtin() bool {
	return t.OwnerID == nil
}

var varPattern = regexp.MustCompile(`\{\{var\.([a-zA-Z0-9_]+)\}\}`)

// Catalog holds the built-in templates plus user-saved custom ones.
type Catalog struct {
	mu     sync.RWMutex
	custom map[string]*TemplateDefinition
}

// NewCatalog creates a catalog seeded with the built-in templates.
func NewCatalog() *Catalog {
	return &Catalog{custom: make(map[string]*TemplateDefinition)}
}

// List returns all templates, built-ins first, then custom ones by name.
func (c *Catalog) List() []TemplateDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TemplateDefinition, 0, len(builtinTemplates)+len(c.custom))
	for _, t := range builtinTemplates {
		out = append(out, *t)
	}

	custom := make([]TemplateDefinition, 0, len(c.custom))
	for _, t := range c.custom {
		custom = append(custom, *t)
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })

	return append(out, custom...)
}

// Get returns one template by ID.
func (c *Catalog) Get(id string) (*TemplateDefinition, error) {
	for _, t := range builtinTemplates {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.custom[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, ErrTemplateNotFound
}

// Save stores a custom template. Built-in IDs cannot be shadowed.
func (c *Catalog) Save(t *TemplateDefinition) error {
	for _, b := range builtinTemplates {
		if b.ID == t.ID {
			return ErrBuiltinTemplate
		}
	}

	t.Type = models.TemplateCustom
	t.Variables = referencedVariables(t.Content)

	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *t
	c.custom[t.ID] = &cp
	return nil
}

// Delete removes a custom template. Only the owner may delete it.
func (c *Catalog) Delete(id string, callerID uuid.UUID) error {
	for _, b := range builtinTemplates {
		if b.ID == id {
			return ErrBuiltinTemplate
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.custom[id]
	if !ok {
		return ErrTemplateNotFound
	}
	if t.OwnerID == nil || *t.OwnerID != callerID {
		return ErrTemplateNotFound
	}

	delete(c.custom, id)
	return nil
}

// Instantiate produces contract content from a template, substituting every
// {{var.*}} reference. All referenced variables must be present in vars.
func (c *Catalog) Instantiate(id string, vars map[string]string) (models.ContractContent, error) {
	t, err := c.Get(id)
	if err != nil {
		return models.ContractContent{}, err
	}

	var missing []string
	for _, name := range t.Variables {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return models.ContractContent{}, fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(missing, ", "))
	}

	content := substituteContent(t.Content, vars)
	content.Meta = &models.Meta{
		TemplateID:          t.ID,
		TemplateVersion:     "1",
		CreatedFromTemplate: true,
	}
	return content, nil
}

func substituteContent(content models.ContractContent, vars map[string]string) models.ContractContent {
	out := models.ContractContent{
		Sections: make([]models.Section, len(content.Sections)),
	}
	for i, s := range content.Sections {
		out.Sections[i] = models.Section{
			Title:       substitute(s.Title, vars),
			Text:        substitute(s.Text, vars),
			Type:        s.Type,
			Subsections: make([]models.Subsection, len(s.Subsections)),
		}
		for j, sub := range s.Subsections {
			out.Sections[i].Subsections[j] = models.Subsection{
				Title: substitute(sub.Title, vars),
				Text:  substitute(sub.Text, vars),
			}
		}
	}
	return out
}

func substitute(text string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// referencedVariables collects the distinct variable names a template's
// content refers to, in first-appearance order.
func referencedVariables(content models.ContractContent) []string {
	seen := make(map[string]bool)
	var names []string

	collect := func(text string) {
		for _, m := range varPattern.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}

	for _, s := range content.Sections {
		collect(s.Title)
		collect(s.Text)
		for _, sub := range s.Subsections {
			collect(sub.Title)
			collect(sub.Text)
		}
	}
	return names
}
