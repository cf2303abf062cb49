package state

import (
	"fmt"
	"slices"
	"strings"
)

// TemplatePatch lists the fields UpdateTemplate may change.
type TemplatePatch struct {
	Title     *string `json:"title,omitempty"`
	Body      *string `json:"body,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
	IsDefault *bool   `json:"isDefault,omitempty"`
}

// PromptPatch lists the fields UpdatePrompt may change.
type PromptPatch struct {
	Title        *string `json:"title,omitempty"`
	SystemPrompt *string `json:"systemPrompt,omitempty"`
	IsActive     *bool   `json:"isActive,omitempty"`
	IsDefault    *bool   `json:"isDefault,omitempty"`
}

// AddTemplate stores a new template.
func (s *Store) AddTemplate(t Template) (Template, error) {
	if strings.TrimSpace(t.Title) == "" {
		return Template{}, fmt.Errorf("%w: template title is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	if t.ID == "" {
		t.ID = newID("tpl")
	}
	t.CreatedAt = s.clock.Now()
	next := *cur
	next.Templates = append(slices.Clone(cur.Templates), t)
	s.commit(&next, "template.added")
	return t, nil
}

// UpdateTemplate applies p to the template with the given id.
func (s *Store) UpdateTemplate(id string, p TemplatePatch) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Templates, func(x Template) bool { return x.ID == id })
	if i < 0 {
		return Template{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	t := cur.Templates[i]
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return Template{}, fmt.Errorf("%w: template title is required", ErrInvalidInput)
		}
		t.Title = *p.Title
	}
	if p.Body != nil {
		t.Body = *p.Body
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if p.IsDefault != nil {
		t.IsDefault = *p.IsDefault
	}
	next := *cur
	next.Templates = slices.Clone(cur.Templates)
	next.Templates[i] = t
	s.commit(&next, "template.updated")
	return t, nil
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Templates, func(x Template) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	next := *cur
	next.Templates = slices.Delete(slices.Clone(cur.Templates), i, i+1)
	s.commit(&next, "template.deleted")
	return nil
}

// DuplicateTemplate copies a template under a new id with " (Copy)"
// appended to the title. The copy is never the default.
func (s *Store) DuplicateTemplate(id string) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Templates, func(x Template) bool { return x.ID == id })
	if i < 0 {
		return Template{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	t := cur.Templates[i]
	t.ID = newID("tpl")
	t.Title += " (Copy)"
	t.IsDefault = false
	t.CreatedAt = s.clock.Now()
	next := *cur
	next.Templates = append(slices.Clone(cur.Templates), t)
	s.commit(&next, "template.duplicated")
	return t, nil
}

// AddPrompt stores a new prompt.
func (s *Store) AddPrompt(p Prompt) (Prompt, error) {
	if strings.TrimSpace(p.Title) == "" {
		return Prompt{}, fmt.Errorf("%w: prompt title is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	if p.ID == "" {
		p.ID = newID("prm")
	}
	p.CreatedAt = s.clock.Now()
	next := *cur
	next.Prompts = append(slices.Clone(cur.Prompts), p)
	s.commit(&next, "prompt.added")
	return p, nil
}

// UpdatePrompt applies patch to the prompt with the given id.
func (s *Store) UpdatePrompt(id string, patch PromptPatch) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Prompts, func(x Prompt) bool { return x.ID == id })
	if i < 0 {
		return Prompt{}, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	p := cur.Prompts[i]
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return Prompt{}, fmt.Errorf("%w: prompt title is required", ErrInvalidInput)
		}
		p.Title = *patch.Title
	}
	if patch.SystemPrompt != nil {
		p.SystemPrompt = *patch.SystemPrompt
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.IsDefault != nil {
		p.IsDefault = *patch.IsDefault
	}
	next := *cur
	next.Prompts = slices.Clone(cur.Prompts)
	next.Prompts[i] = p
	s.commit(&next, "prompt.updated")
	return p, nil
}

// DeletePrompt removes a prompt.
func (s *Store) DeletePrompt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Prompts, func(x Prompt) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	next := *cur
	next.Prompts = slices.Delete(slices.Clone(cur.Prompts), i, i+1)
	s.commit(&next, "prompt.deleted")
	return nil
}

// DuplicatePrompt copies a prompt the same way DuplicateTemplate does.
func (s *Store) DuplicatePrompt(id string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current()
	i := indexOf(cur.Prompts, func(x Prompt) bool { return x.ID == id })
	if i < 0 {
		return Prompt{}, fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	p := cur.Prompts[i]
	p.ID = newID("prm")
	p.Title += " (Copy)"
	p.IsDefault = false
	p.CreatedAt = s.clock.Now()
	next := *cur
	next.Prompts = append(slices.Clone(cur.Prompts), p)
	s.commit(&next, "prompt.duplicated")
	return p, nil
}
