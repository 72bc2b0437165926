// Package message builds the text posted on each run.
package message

import (
	"time"

	"autopost/internal/util"
)

const DefaultTemplate = "Hello world! 🌍 This tweet was auto-posted at {time}."

// Generator renders Template with the run's clock. Supported variables are
// {time} (2006-01-02 15:04:05), {date} (2006-01-02) and {run_id}.
type Generator struct {
	Template string
	RunID    string
	Now      func() time.Time
}

func (g Generator) Generate() string {
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	tmpl := g.Template
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	return util.RenderTemplate(tmpl, map[string]string{
		"time":   now.Format("2006-01-02 15:04:05"),
		"date":   now.Format("2006-01-02"),
		"run_id": g.RunID,
	})
}
