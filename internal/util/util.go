package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Very simple {var} replacement for message templates.
func RenderTemplate(body string, vars map[string]string) string {
	out := body
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func NewRunID() string {
	// ULID is sortable, so run IDs line up with the log order
	t := time.Now().UTC()
	return "run_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
