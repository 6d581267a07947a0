// Package ioformats writes tracking reports and grant listings as NDJSON or CSV.
package ioformats

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"grantwatch/internal/models"
)

// WriteNDJSON writes one JSON object per report.
func WriteNDJSON(w io.Writer, reports []models.Report) error {
	enc := json.NewEncoder(w)
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

var grantHeader = []string{"id", "url", "status"}

// WriteGrantsCSV writes a header row followed by one row per grant.
func WriteGrantsCSV(w io.Writer, grants []models.GrantSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(grantHeader); err != nil {
		return err
	}
	for _, g := range grants {
		if err := cw.Write([]string{strconv.FormatInt(g.ID, 10), g.URL, string(g.Status)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
