package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
	"golang.org/x/time/rate"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2106.15928v2</id>
    <published>2021-06-30T08:00:00Z</published>
    <title>Deep Learning for
      Climate Modeling</title>
    <author><name>John Smith</name></author>
    <author><name>Ana  Lopez</name></author>
    <arxiv:doi>10.1234/Climate.2023</arxiv:doi>
    <link href="http://arxiv.org/abs/2106.15928v2" rel="alternate" type="text/html"/>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

const errorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_bogus</id>
    <title>Error</title>
  </entry>
</feed>`

func newTestClient(t *testing.T, body string, check func(r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithRateLimit(rate.Inf))
}

func TestGetByID(t *testing.T) {
	client := newTestClient(t, sampleFeed, func(r *http.Request) {
		if got := r.URL.Query().Get("id_list"); got != "2106.15928" {
			t.Errorf("id_list = %q", got)
		}
	})

	e, err := client.GetByID(context.Background(), "2106.15928")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if e.Title != "Deep Learning for Climate Modeling" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.Year != 2021 {
		t.Errorf("Year = %d, want 2021", e.Year)
	}
	if len(e.Authors) != 2 || e.Authors[1] != "Ana Lopez" {
		t.Errorf("Authors = %v", e.Authors)
	}
	if e.DOI != "10.1234/climate.2023" {
		t.Errorf("DOI = %q", e.DOI)
	}
}

func TestQuery_NotFound(t *testing.T) {
	for name, body := range map[string]string{"empty": emptyFeed, "error entry": errorFeed} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, body, nil)
			_, err := client.GetByID(context.Background(), "bogus")
			if source.Classify(err) != record.FailureNotFound {
				t.Errorf("Classify(%v) = %s, want not_found", err, source.Classify(err))
			}
		})
	}
}

func TestAdapter_TitleSearch(t *testing.T) {
	client := newTestClient(t, sampleFeed, func(r *http.Request) {
		if got := r.URL.Query().Get("search_query"); got != `ti:"Deep Learning for Climate Modeling"` {
			t.Errorf("search_query = %q", got)
		}
	})

	rec, err := NewAdapter(client, DefaultConfidence).Fetch(context.Background(), source.Query{
		Hints: source.Hints{Title: "Deep Learning for Climate Modeling"},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if rec.SourceID != SourceID || rec.Year != 2021 || rec.Confidence != DefaultConfidence {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestAdapter_RejectsUnrelatedHit(t *testing.T) {
	client := newTestClient(t, sampleFeed, nil)
	_, err := NewAdapter(client, DefaultConfidence).Fetch(context.Background(), source.Query{
		Hints: source.Hints{Title: "Protein Folding with Graph Networks"},
	})
	if source.Classify(err) != record.FailureNotFound {
		t.Errorf("Classify(%v) = %s, want not_found", err, source.Classify(err))
	}
}

func TestTitleOverlap(t *testing.T) {
	if got := titleOverlap("Deep Learning", "deep learning for climate"); got != 1 {
		t.Errorf("titleOverlap() = %v, want 1", got)
	}
	if got := titleOverlap("", "anything"); got != 0 {
		t.Errorf("titleOverlap(empty) = %v, want 0", got)
	}
}
