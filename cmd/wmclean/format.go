package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"wmclean/internal/services"
)

var titleCaser = cases.Title(language.English)

// formatLabel turns identifiers like "fatal_provider" into "Fatal Provider".
func formatLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatBytes(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.0f%%", value)
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// formatCLIError prints the classified message with a hint when one applies.
func formatCLIError(err error) string {
	details := services.Details(err)
	if details.Kind == "unknown" || details.Hint == "" {
		return "Error: " + details.Message
	}
	return fmt.Sprintf("Error (%s): %s\nHint: %s", formatLabel(details.Kind), details.Message, details.Hint)
}
