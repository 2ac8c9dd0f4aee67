package content

import (
	"net/url"
	"strconv"
	"strings"
)

// Editor forms post repeated items as parallel arrays: every row of a list
// section uses the same field names, one value per row.

func text(form url.Values, key string) string {
	return strings.TrimSpace(form.Get(key))
}

func flag(form url.Values, key string) bool {
	switch strings.ToLower(form.Get(key)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

func number(form url.Values, key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(form.Get(key)))
	if err != nil {
		return fallback
	}
	return n
}

// rows zips the parallel arrays named by keys. Rows whose values are all
// blank are dropped, so the editor can always offer an empty row.
func rows(form url.Values, keys ...string) [][]string {
	n := 0
	for _, k := range keys {
		if l := len(form[k]); l > n {
			n = l
		}
	}
	var out [][]string
	for i := 0; i < n; i++ {
		row := make([]string, len(keys))
		blank := true
		for j, k := range keys {
			if vals := form[k]; i < len(vals) {
				row[j] = strings.TrimSpace(vals[i])
			}
			if row[j] != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, row)
		}
	}
	return out
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
