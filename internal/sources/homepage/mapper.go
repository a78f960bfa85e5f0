package homepage

import (
	"sort"
)

// MapBookmarks flattens bookmarks.yaml into links. The bookmark name is
// the title; entries without href are skipped.
func MapBookmarks(config BookmarksConfig) []Link {
	var links []Link

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					// Each bookmark has a list with a single entry
					if len(entries) == 0 || entries[0].Href == "" {
						continue
					}
					links = append(links, Link{
						Category: categoryName,
						Title:    name,
						URL:      entries[0].Href,
					})
				}
			}
		}
	}

	return links
}

// MapServices flattens services.yaml into links, one per service with an href
func MapServices(config ServicesConfig) []Link {
	var links []Link

	for _, group := range config {
		for _, groupName := range sortedKeys(group) {
			for _, serviceMap := range group[groupName] {
				for _, name := range sortedKeys(serviceMap) {
					props := serviceMap[name]
					if props.Href == "" {
						continue
					}
					links = append(links, Link{
						Category: groupName,
						Title:    name,
						URL:      props.Href,
					})
				}
			}
		}
	}

	return links
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
