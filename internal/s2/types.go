// Package s2 queries the Semantic Scholar Academic Graph for bibliographic
// metadata and maps the answers onto source records.
package s2

// Paper is a paper as returned by the Graph API.
type Paper struct {
	PaperID     string      `json:"paperId"`
	ExternalIDs ExternalIDs `json:"externalIds,omitempty"`
	Title       string      `json:"title"`
	Authors     []Author    `json:"authors,omitempty"`
	Year        int         `json:"year,omitempty"`
	PubDate     string      `json:"publicationDate,omitempty"` // YYYY-MM-DD
	MatchScore  float64     `json:"matchScore,omitempty"`
}

// ExternalIDs holds the identifiers S2 links to a paper.
type ExternalIDs struct {
	DOI   string `json:"DOI,omitempty"`
	ArXiv string `json:"ArXiv,omitempty"`
}

// Author is an author entry in a Paper.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// matchResponse wraps /paper/search/match results.
type matchResponse struct {
	Data []Paper `json:"data"`
}

// errorResponse is the body S2 sends with 4xx answers.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
