package notion

import (
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
)

// ParseError reports a catalog page that lacks an expected property or holds
// it with the wrong type.
type ParseError struct {
	RecordID string
	Property string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("page %s: property %q: %s", e.RecordID, e.Property, e.Reason)
}

// projector reads typed values out of one page, remembering the first
// failure so call sites stay linear.
type projector struct {
	id    string
	props notionapi.Properties
	err   *ParseError
}

func (p *projector) prop(name string) notionapi.Property {
	if p.err != nil {
		return nil
	}
	v, ok := p.props[name]
	if !ok {
		p.err = &ParseError{RecordID: p.id, Property: name, Reason: "missing"}
		return nil
	}
	if want := Schema[name]; v.GetType() != want {
		p.err = &ParseError{RecordID: p.id, Property: name, Reason: fmt.Sprintf("expected %s, got %s", want, v.GetType())}
		return nil
	}
	return v
}

// property returns the named property as T, which the client decodes as a
// pointer.
func property[T any](p *projector, name string) (T, bool) {
	var zero T
	switch v := p.prop(name).(type) {
	case nil:
		return zero, false
	case *T:
		return *v, true
	case T:
		return v, true
	default:
		p.err = &ParseError{RecordID: p.id, Property: name, Reason: fmt.Sprintf("unexpected value %T", v)}
		return zero, false
	}
}

func (p *projector) title(name string) string {
	v, _ := property[notionapi.TitleProperty](p, name)
	return plainText(v.Title)
}

func (p *projector) text(name string) string {
	v, _ := property[notionapi.RichTextProperty](p, name)
	return plainText(v.RichText)
}

func (p *projector) url(name string) string {
	v, _ := property[notionapi.URLProperty](p, name)
	return v.URL
}

func (p *projector) tags(name string) []domain.Tag {
	v, ok := property[notionapi.MultiSelectProperty](p, name)
	if !ok {
		return nil
	}
	tags := make([]domain.Tag, 0, len(v.MultiSelect))
	for _, o := range v.MultiSelect {
		tags = append(tags, domain.Tag{Name: o.Name, Color: string(o.Color)})
	}
	return tags
}

func (p *projector) selected(name string) string {
	v, _ := property[notionapi.SelectProperty](p, name)
	return v.Select.Name
}

func (p *projector) date(name string) time.Time {
	v, ok := property[notionapi.DateProperty](p, name)
	if !ok || v.Date == nil || v.Date.Start == nil {
		return time.Time{}
	}
	return time.Time(*v.Date.Start)
}

// projectRecord converts a catalog page into a typed record.
func projectRecord(pg notionapi.Page) (domain.Record, error) {
	p := &projector{id: pg.ID.String(), props: pg.Properties}
	rec := domain.Record{
		RecordID:      pg.ID.String(),
		ID:            p.title(PropID),
		Name:          p.text(PropName),
		Author:        p.text(PropAuthor),
		Description:   p.text(PropDescription),
		RepositoryURL: p.url(PropRepository),
		FundingURL:    p.url(PropFunding),
		Tags:          p.tags(PropTags),
		LastActivity:  p.date(PropLastCommit),
		Status:        domain.ActivityStatus(p.selected(PropStatus)),
		RevisionTag:   p.text(PropETag),
	}
	if p.err != nil {
		return domain.Record{}, p.err
	}
	return rec, nil
}

func plainText(segments []notionapi.RichText) string {
	var b strings.Builder
	for _, s := range segments {
		switch {
		case s.PlainText != "":
			b.WriteString(s.PlainText)
		case s.Text != nil:
			b.WriteString(s.Text.Content)
		}
	}
	return b.String()
}

// Notion caps a single text segment at 2000 characters.
const maxTextSegment = 2000

func textValue(s string) []notionapi.RichText {
	segments := []notionapi.RichText{}
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(len(runes), maxTextSegment)
		segments = append(segments, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return segments
}

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: textValue(s)}
}

func richTextProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: textValue(s)}
}

func urlProp(s string) notionapi.URLProperty {
	return notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: s}
}

func tagsProp(tags []domain.Tag) notionapi.MultiSelectProperty {
	opts := make([]notionapi.Option, 0, len(tags))
	for _, t := range tags {
		opts = append(opts, notionapi.Option{Name: t.Name, Color: notionapi.Color(t.Color)})
	}
	return notionapi.MultiSelectProperty{Type: notionapi.PropertyTypeMultiSelect, MultiSelect: opts}
}

func statusProp(s domain.ActivityStatus) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: string(s), Color: notionapi.Color(s.Color())},
	}
}

func dateProp(t time.Time) notionapi.DateProperty {
	start := notionapi.Date(t.UTC())
	return notionapi.DateProperty{
		Type: notionapi.PropertyTypeDate,
		Date: &notionapi.DateObject{Start: &start},
	}
}

// setOptional adds the url, select and date values that are set. Notion
// rejects an empty url or option name; a property left out stays blank.
func setOptional(props notionapi.Properties, name string, prop notionapi.Property, set bool) {
	if set {
		props[name] = prop
	}
}

// recordProperties renders every property of a new record.
func recordProperties(rec domain.Record) notionapi.Properties {
	props := notionapi.Properties{
		PropID:          titleProp(rec.ID),
		PropName:        richTextProp(rec.Name),
		PropAuthor:      richTextProp(rec.Author),
		PropDescription: richTextProp(rec.Description),
		PropTags:        tagsProp(rec.Tags),
		PropETag:        richTextProp(rec.RevisionTag),
	}
	setOptional(props, PropRepository, urlProp(rec.RepositoryURL), rec.RepositoryURL != "")
	setOptional(props, PropFunding, urlProp(rec.FundingURL), rec.FundingURL != "")
	setOptional(props, PropLastCommit, dateProp(rec.LastActivity), !rec.LastActivity.IsZero())
	setOptional(props, PropStatus, statusProp(rec.Status), rec.Status != "")
	return props
}

// patchProperties renders only the staged fields of patch.
func patchProperties(patch domain.RecordPatch) notionapi.Properties {
	props := notionapi.Properties{}
	if patch.Name != nil {
		props[PropName] = richTextProp(*patch.Name)
	}
	if patch.Author != nil {
		props[PropAuthor] = richTextProp(*patch.Author)
	}
	if patch.Description != nil {
		props[PropDescription] = richTextProp(*patch.Description)
	}
	if patch.RepositoryURL != nil {
		setOptional(props, PropRepository, urlProp(*patch.RepositoryURL), *patch.RepositoryURL != "")
	}
	if patch.FundingURL != nil {
		setOptional(props, PropFunding, urlProp(*patch.FundingURL), *patch.FundingURL != "")
	}
	if patch.Tags != nil {
		props[PropTags] = tagsProp(patch.Tags)
	}
	if patch.LastActivity != nil {
		setOptional(props, PropLastCommit, dateProp(*patch.LastActivity), !patch.LastActivity.IsZero())
	}
	if patch.Status != nil {
		setOptional(props, PropStatus, statusProp(*patch.Status), *patch.Status != "")
	}
	if patch.RevisionTag != nil {
		props[PropETag] = richTextProp(*patch.RevisionTag)
	}
	return props
}
