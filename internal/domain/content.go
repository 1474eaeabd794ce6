package domain

type ContentKind string

const (
	ContentVideo    ContentKind = "video"
	ContentDocument ContentKind = "document"
)

// ContentItem is a single resource emitted into a report.
type ContentItem struct {
	Title string
	URL   string
	Kind  ContentKind
}

// ContentType is a platform specific content category offered to the user.
type ContentType struct {
	Key   string
	Label string
}

// Section groups items under one subject header.
type Section struct {
	Name  string
	Items []ContentItem
}

func CountItems(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += len(s.Items)
	}
	return n
}
