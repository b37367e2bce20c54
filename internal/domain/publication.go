package domain

import "fmt"

// PublicationType distinguishes the two content channels we plan for.
type PublicationType string

const (
	PublicationNewsletter PublicationType = "newsletter"
	PublicationVideo      PublicationType = "video"
)

// Publication is a content channel with its own weekly cadence.
// UnifiedWith, when set, names another publication whose slot grid this
// one shares; resolution is one hop only, never transitive.
type Publication struct {
	ID           string
	Slug         string
	Name         string
	Type         PublicationType
	WeeklyTarget int
	UnifiedWith  string
	IsActive     bool
}

// Validate checks the registry invariants for a publication record.
func (p *Publication) Validate() error {
	if p.Slug == "" {
		return fmt.Errorf("publication %s: empty slug", p.ID)
	}
	if p.Type != PublicationNewsletter && p.Type != PublicationVideo {
		return fmt.Errorf("publication %s: unknown type %q", p.Slug, p.Type)
	}
	if p.WeeklyTarget < 1 {
		return fmt.Errorf("publication %s: weekly target must be >= 1, got %d", p.Slug, p.WeeklyTarget)
	}
	if p.UnifiedWith == p.Slug && p.UnifiedWith != "" {
		return fmt.Errorf("publication %s: unified with itself", p.Slug)
	}
	return nil
}
