package seed

// File is the top-level structure of a seed file: a list of plugins that
// are appended to the registry list for test runs.
type File struct {
	Entries []Entry `yaml:"plugins"`
}

// Entry mirrors one registry list entry plus the fields normally found
// through manifest and revision lookups.
type Entry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Author       string `yaml:"author"`
	Description  string `yaml:"description"`
	Repo         string `yaml:"repo"`
	FundingURL   string `yaml:"fundingUrl,omitempty"`
	DesktopOnly  bool   `yaml:"desktopOnly,omitempty"`
	LastActivity string `yaml:"lastActivity,omitempty"`
	Archived     bool   `yaml:"archived,omitempty"`
	RevisionTag  string `yaml:"etag,omitempty"`
}
