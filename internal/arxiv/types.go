// Package arxiv queries the arXiv Atom API for preprint metadata.
package arxiv

// feed is the Atom document returned by /api/query.
type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Published string   `xml:"published"`
	Authors   []author `xml:"author"`
	DOI       string   `xml:"http://arxiv.org/schemas/atom doi"`
	Links     []link   `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

// Entry is a parsed arXiv result.
type Entry struct {
	ID      string
	Title   string
	Authors []string
	Year    int
	DOI     string
}
