package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"plexadmin/internal/filter"
	"plexadmin/internal/shares"
)

// RenderTable formats rows under headers. Terminals get rounded borders;
// anything else gets plain ASCII so output stays grep-friendly.
func RenderTable(headers []string, rows [][]string, rounded bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if rounded {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// WriteRecordTable prints one user's share settings as a two-column table.
func WriteRecordTable(w io.Writer, user string, rec shares.Record) error {
	sections := "-"
	if len(rec.Sections) > 0 {
		sections = strings.Join(rec.Sections, ", ")
	}
	rows := [][]string{
		{"Username", rec.Username},
		{"Email", rec.Email},
		{"User ID", fmt.Sprintf("%d", rec.UserID)},
		{"Server", rec.ServerName},
		{"Libraries", sections},
		{"Sync", yesNo(rec.AllowSync)},
		{"Camera Upload", yesNo(rec.Camera)},
		{"Plugins", yesNo(rec.Channels)},
		{"Movie Filters", filterCell(rec.FilterMovies)},
		{"Show Filters", filterCell(rec.FilterTelevision)},
		{"Music Filters", filterCell(rec.FilterMusic)},
	}
	_, err := fmt.Fprintf(w, "Current share settings for %s:\n%s\n", user, RenderTable([]string{"Setting", "Value"}, rows, IsTerminal(w)))
	return err
}

func filterCell(f filter.Filter) string {
	if len(f) == 0 {
		return "-"
	}
	return f.String()
}
