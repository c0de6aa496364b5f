package domain

// Tag is a labelled marker with a display color.
type Tag struct {
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

const (
	// MobileTagName marks plugins that run on mobile.
	MobileTagName = "mobile"
	// ErrorTagName is set manually on records whose tags must not be managed.
	ErrorTagName = "❌"
)

// MobileTag is the platform tag added to mobile-compatible plugins.
var MobileTag = Tag{Name: MobileTagName, Color: "blue"}

// HasTag reports whether tags contains a tag with the given name.
func HasTag(tags []Tag, name string) bool {
	for _, t := range tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// WithoutTag returns a copy of tags with every tag named name removed.
func WithoutTag(tags []Tag, name string) []Tag {
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Name != name {
			out = append(out, t)
		}
	}
	return out
}

// PlatformTags returns the tag set of a brand-new record for p.
func PlatformTags(p *Plugin) []Tag {
	if p.MobileCompatible {
		return []Tag{MobileTag}
	}
	return []Tag{}
}
