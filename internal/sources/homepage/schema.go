package homepage

// BookmarkEntry represents a single bookmark entry in bookmarks.yaml
type BookmarkEntry struct {
	Icon string `yaml:"icon"`
	Abbr string `yaml:"abbr"`
	Href string `yaml:"href"`
}

// BookmarksConfig is the root structure of bookmarks.yaml:
// - CategoryName: [ - BookmarkName: [{ icon, abbr, href }] ]
type BookmarksConfig []map[string][]map[string][]BookmarkEntry

// ServicesConfig is the root structure of services.yaml:
// - GroupName: [ - ServiceName: { href, description, ... } ]
type ServicesConfig []map[string][]map[string]ServiceProps

// ServiceProps contains the service properties we import
type ServiceProps struct {
	Href        string `yaml:"href"`
	Icon        string `yaml:"icon,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Link is one importable bookmark found in a Homepage file
type Link struct {
	Category string
	Title    string
	URL      string
}
