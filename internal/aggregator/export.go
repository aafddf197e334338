package aggregator

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zombar/reviewinsights/internal/models"
)

const csvHeader = "ID,User,Date,Score,Sentiment,Content,Intentions,Keywords"

func csvRecord(c models.AnalyzedComment) []string {
	return []string{
		c.ID,
		c.UserName,
		c.Date.UTC().Format(time.RFC3339),
		strconv.Itoa(c.Score),
		c.Sentiment,
		c.Content,
		strings.Join(c.Intentions, ";"),
		strings.Join(c.Keywords, ";"),
	}
}

// ExportCSV renders one row per comment. The default output wraps every field
// in quotes, doubles embedded quotes and turns embedded commas into `","`,
// which existing consumers depend on. standard selects RFC 4180 output.
func ExportCSV(comments []models.AnalyzedComment, standard bool) (string, error) {
	if standard {
		return exportStandardCSV(comments)
	}

	rows := make([]string, 0, len(comments)+1)
	rows = append(rows, csvHeader)
	for _, c := range comments {
		record := csvRecord(c)
		fields := make([]string, len(record))
		for i, f := range record {
			f = strings.ReplaceAll(f, `"`, `""`)
			f = strings.ReplaceAll(f, ",", `","`)
			fields[i] = `"` + f + `"`
		}
		rows = append(rows, strings.Join(fields, ","))
	}
	return strings.Join(rows, "\n"), nil
}

func exportStandardCSV(comments []models.AnalyzedComment) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(strings.Split(csvHeader, ",")); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range comments {
		if err := w.Write(csvRecord(c)); err != nil {
			return "", fmt.Errorf("write csv row %s: %w", c.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

type jsonExport struct {
	Summary models.Summary           `json:"summary"`
	Reviews []models.AnalyzedComment `json:"reviews"`
}

// ExportJSON renders the summary and the analysed reviews as indented JSON
func ExportJSON(summary models.Summary, comments []models.AnalyzedComment) (string, error) {
	if comments == nil {
		comments = []models.AnalyzedComment{}
	}
	data, err := json.MarshalIndent(jsonExport{Summary: summary, Reviews: comments}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json export: %w", err)
	}
	return string(data), nil
}
