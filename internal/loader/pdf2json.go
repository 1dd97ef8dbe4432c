package loader

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Aman-CERP/docfind/internal/document"
)

var utf8BOM = []byte("\ufeff")

// pdf2json output, reduced to the fields extraction uses. Older versions
// nest the pages under "formImage".
type pdf2jsonDoc struct {
	Pages     []pdf2jsonPage `json:"Pages"`
	FormImage *struct {
		Pages []pdf2jsonPage `json:"Pages"`
	} `json:"formImage"`
}

type pdf2jsonPage struct {
	Texts []pdf2jsonText `json:"Texts"`
}

type pdf2jsonText struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
	R []struct {
		T string `json:"T"`
	} `json:"R"`
}

// LoadPDF2JSON reads pdf2json output. Each text item's first run becomes a
// percent-encoded raw run; items without runs are skipped.
func LoadPDF2JSON(data []byte) ([]document.RawPage, error) {
	var doc pdf2jsonDoc
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &doc); err != nil {
		return nil, corrupt(FormatPDF2JSON, err)
	}

	pages := doc.Pages
	if pages == nil && doc.FormImage != nil {
		pages = doc.FormImage.Pages
	}
	if pages == nil {
		return nil, corrupt(FormatPDF2JSON, errors.New(`no "Pages" array`))
	}

	raw := make([]document.RawPage, len(pages))
	for i, p := range pages {
		runs := make([]document.RawTextRun, 0, len(p.Texts))
		for j, t := range p.Texts {
			if len(t.R) == 0 {
				continue
			}
			runs = append(runs, document.RawTextRun{
				Text:     t.R[0].T,
				Encoding: document.EncodingPercent,
				X:        t.X,
				Y:        t.Y,
				Width:    t.W,
				Height:   t.H,
				Index:    j + 1,
			})
		}
		raw[i] = document.RawPage{Runs: runs}
	}
	return raw, nil
}
