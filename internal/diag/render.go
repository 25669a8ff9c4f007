package diag

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// questionPreviewLen is the display width questions are clipped to.
const questionPreviewLen = 50

func renderCompanies(w io.Writer, companies []Company) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Name", "Ticker", "Sector"})
	for _, c := range companies {
		table.Append([]string{c.Name, c.Ticker, c.Sector})
	}
	table.Render()
}

func renderQAEntries(w io.Writer, entries []QAEntry) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Question", "Category"})
	for _, qa := range entries {
		table.Append([]string{truncate(qa.Question, questionPreviewLen), qa.Category})
	}
	table.Render()
}

// truncate clips s to at most n runes, appending an ellipsis when clipped.
// Slicing by rune keeps multibyte questions intact.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
