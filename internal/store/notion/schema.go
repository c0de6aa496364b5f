package notion

import "github.com/jomei/notionapi"

// Property names of the catalog database.
const (
	PropID          = "ID"
	PropName        = "Name"
	PropAuthor      = "Author"
	PropDescription = "Description"
	PropRepository  = "Repository"
	PropFunding     = "Funding"
	PropTags        = "Tags"
	PropLastCommit  = "Last commit"
	PropStatus      = "Repository status"
	PropETag        = "ETAG"
)

// Schema maps every catalog property to its Notion type.
var Schema = map[string]notionapi.PropertyType{
	PropID:          notionapi.PropertyTypeTitle,
	PropName:        notionapi.PropertyTypeRichText,
	PropAuthor:      notionapi.PropertyTypeRichText,
	PropDescription: notionapi.PropertyTypeRichText,
	PropRepository:  notionapi.PropertyTypeURL,
	PropFunding:     notionapi.PropertyTypeURL,
	PropTags:        notionapi.PropertyTypeMultiSelect,
	PropLastCommit:  notionapi.PropertyTypeDate,
	PropStatus:      notionapi.PropertyTypeSelect,
	PropETag:        notionapi.PropertyTypeRichText,
}

// SchemaTypes renders Schema with plain type names.
func SchemaTypes() map[string]string {
	out := make(map[string]string, len(Schema))
	for name, typ := range Schema {
		out[name] = string(typ)
	}
	return out
}
