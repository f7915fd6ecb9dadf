package main

import (
	"fmt"
	"strings"

	"github.com/quotedesk/selfupdate/api"
)

// formatSection properly indents a text section.
func formatSection(header string, content string) string {
	var out strings.Builder

	// Add section header
	if header != "" {
		_, _ = out.WriteString(header + ":\n")
	}

	// Indent the content
	for line := range strings.SplitSeq(content, "\n") {
		if line != "" {
			_, _ = out.WriteString("  ")
		}

		_, _ = out.WriteString(line + "\n")
	}

	if header != "" {
		// Section separator (when rendering a full section
		_, _ = out.WriteString("\n")

		return out.String()
	}

	// Remove last newline when rendering partial section
	return strings.TrimSuffix(out.String(), "\n")
}

// renderEvent prints one line of human readable progress per controller
// event. Download progress redraws in place, everything else gets its own
// line. Machine facing logging goes through slog instead.
func renderEvent(event api.UpdateEvent) {
	switch event.Status {
	case api.UpdateStatusDownloading:
		if event.BytesTotal > 0 {
			_, _ = fmt.Printf("\rDownloading QuoteDesk %s: %.1f%%", event.Version, event.Percent()) //nolint:forbidigo
		} else {
			_, _ = fmt.Printf("\rDownloading QuoteDesk %s: %d bytes", event.Version, event.BytesDone) //nolint:forbidigo
		}

	case api.UpdateStatusVerifying:
		_, _ = fmt.Printf("\nVerifying download\n") //nolint:forbidigo

	case api.UpdateStatusStaged:
		_, _ = fmt.Printf("Staged QuoteDesk %s\n", event.Version) //nolint:forbidigo

	case api.UpdateStatusCommitting:
		_, _ = fmt.Printf("Preparing install script\n") //nolint:forbidigo

	case api.UpdateStatusHandedOff:
		_, _ = fmt.Printf("Update handed off: %s\n", event.Message) //nolint:forbidigo

	case api.UpdateStatusFailed:
		_, _ = fmt.Printf("Update failed: %s\n", event.Reason) //nolint:forbidigo

	case api.UpdateStatusIdle, api.UpdateStatusChecking, api.UpdateStatusAvailable:
		// The sub-commands print their own summary for these.
	}
}
