package form

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// GridDays is the number of day columns in the monitoring grid.
const GridDays = 14

// TimesOfDay are the fixed grid rows, in display order.
var TimesOfDay = []string{"Morning", "Afternoon", "Night"}

// CellID synthesizes the answer key of a grid cell, e.g. day 3 "Afternoon"
// becomes "day3_afternoon". The time label is case-folded.
func CellID(day int, timeOfDay string) string {
	return "day" + strconv.Itoa(day) + "_" + foldLabel(timeOfDay)
}

// ValidCell reports whether day and timeOfDay address a cell of the grid.
func ValidCell(day int, timeOfDay string) bool {
	if day < 1 || day > GridDays {
		return false
	}
	label := foldLabel(timeOfDay)
	for _, t := range TimesOfDay {
		if foldLabel(t) == label {
			return true
		}
	}
	return false
}

// ParseCellID is the inverse of CellID for valid cells.
func ParseCellID(id string) (day int, timeOfDay string, ok bool) {
	rest, found := strings.CutPrefix(id, "day")
	if !found {
		return 0, "", false
	}
	num, label, found := strings.Cut(rest, "_")
	if !found {
		return 0, "", false
	}
	day, err := strconv.Atoi(num)
	if err != nil || strconv.Itoa(day) != num {
		return 0, "", false
	}
	if !ValidCell(day, label) || label != foldLabel(label) {
		return 0, "", false
	}
	return day, label, true
}

// looksLikeCellID reports whether id uses the reserved "day<N>_" shape,
// valid or not. Schema field identifiers may not.
func looksLikeCellID(id string) bool {
	rest, found := strings.CutPrefix(strings.ToLower(id), "day")
	if !found {
		return false
	}
	num, _, found := strings.Cut(rest, "_")
	if !found || num == "" {
		return false
	}
	_, err := strconv.Atoi(num)
	return err == nil
}

// GridCellIDs lists every cell identifier, day-major.
func GridCellIDs() []string {
	ids := make([]string, 0, GridDays*len(TimesOfDay))
	for day := 1; day <= GridDays; day++ {
		for _, t := range TimesOfDay {
			ids = append(ids, CellID(day, t))
		}
	}
	return ids
}

// Cell returns the text stored in a grid cell, or "" if it was never written.
func (a Answers) Cell(day int, timeOfDay string) string {
	return a.Text(CellID(day, timeOfDay))
}

// GridRow is one time-of-day row of the grid as rendered for clients.
type GridRow struct {
	TimeOfDay string   `json:"time_of_day"`
	Cells     []string `json:"cells"`
}

// Grid materializes the full grid from answers; unset cells are "".
func (a Answers) Grid() []GridRow {
	rows := make([]GridRow, 0, len(TimesOfDay))
	for _, t := range TimesOfDay {
		row := GridRow{TimeOfDay: t, Cells: make([]string, GridDays)}
		for day := 1; day <= GridDays; day++ {
			row.Cells[day-1] = a.Cell(day, t)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellError(day int, timeOfDay string) error {
	return fmt.Errorf("%w: day %d, %q", ErrInvalidCell, day, timeOfDay)
}

// foldLabel case-folds a time-of-day label. A Caser keeps state, so a fresh
// one is built per call.
func foldLabel(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
