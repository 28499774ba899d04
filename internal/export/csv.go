package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the column order of WriteCSV.
var CSVHeader = []string{"citation_key", "title", "authors", "year", "doi", "filename", "fingerprint"}

// WriteCSV writes citations with a header row. Authors are joined by "; ".
func WriteCSV(w io.Writer, cs []Citation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, c := range cs {
		year := ""
		if c.Year > 0 {
			year = strconv.Itoa(c.Year)
		}
		row := []string{c.Key, c.Title, strings.Join(c.Authors, "; "), year, c.DOI, c.Filename, c.Fingerprint}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
