// Package export renders a generated schedule as an Excel workbook:
// one master sheet with every match and one sheet per team.
package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/pbeckmann/matchplan/internal/schedule"
)

// Workbook builds the workbook for the given teams and matches. Teams
// come in registration order and each gets its own sheet even when it
// has no scheduled match yet.
func Workbook(teams []string, matches []schedule.Match) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetDefaultFont("Arial")

	if err := writeMasterSheet(f, matches); err != nil {
		return nil, fmt.Errorf("writing master sheet: %w", err)
	}
	if err := writeTeamSheets(f, teams, matches); err != nil {
		return nil, fmt.Errorf("writing team sheets: %w", err)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

func writeMasterSheet(f *excelize.File, matches []schedule.Match) error {
	sheet := "Master Schedule"
	f.NewSheet(sheet)

	headers := []string{"Date", "Day", "Time", "Round", "Match", "Status", "Winner"}
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 12, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if headerStyle != 0 {
		for i := range headers {
			f.SetCellStyle(sheet, cellRef(i+1, 1), cellRef(i+1, 1), headerStyle)
		}
	}

	ordered := sortedByCalendar(matches)
	for i, m := range ordered {
		row := i + 2
		if m.Slot != nil {
			f.SetCellValue(sheet, cellRef(1, row), m.Slot.Date.Format("2006-01-02"))
			f.SetCellValue(sheet, cellRef(2, row), m.Slot.Date.Format("Mon"))
			f.SetCellValue(sheet, cellRef(3, row), m.Slot.Clock())
		}
		f.SetCellValue(sheet, cellRef(4, row), m.Round)
		f.SetCellValue(sheet, cellRef(5, row), m.Pairing.ID())
		f.SetCellValue(sheet, cellRef(6, row), string(m.Status))
		f.SetCellValue(sheet, cellRef(7, row), m.Winner)
	}

	// Unscheduled matches get a light red fill so they stand out.
	if len(ordered) > 0 {
		redFill, _ := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFC7CE"}},
			Font: &excelize.Font{Size: 12, Family: "Arial"},
		})
		lastRow := len(ordered) + 1
		cellRange := fmt.Sprintf("A2:G%d", lastRow)
		formula := fmt.Sprintf(`$F2="%s"`, string(schedule.StatusUnscheduled))
		f.SetConditionalFormat(sheet, cellRange, []excelize.ConditionalFormatOptions{
			{Type: "formula", Criteria: formula, Format: &redFill},
		})
	}

	f.SetColWidth(sheet, "A", "A", 14)
	f.SetColWidth(sheet, "B", "B", 8)
	f.SetColWidth(sheet, "C", "C", 8)
	f.SetColWidth(sheet, "D", "D", 8)
	f.SetColWidth(sheet, "E", "E", 40)
	f.SetColWidth(sheet, "F", "F", 18)
	f.SetColWidth(sheet, "G", "G", 24)
	return nil
}

func writeTeamSheets(f *excelize.File, teams []string, matches []schedule.Match) error {
	for _, team := range teams {
		sheet := sheetName(team)
		f.NewSheet(sheet)

		headers := []string{"Date", "Day", "Time", "Round", "Opponent", "Status"}
		for i, h := range headers {
			f.SetCellValue(sheet, cellRef(i+1, 1), h)
		}
		headerStyle, _ := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 12, Family: "Arial"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if headerStyle != 0 {
			for i := range headers {
				f.SetCellStyle(sheet, cellRef(i+1, 1), cellRef(i+1, 1), headerStyle)
			}
		}

		var own []schedule.Match
		for _, m := range matches {
			if m.Pairing.TeamA == team || m.Pairing.TeamB == team {
				own = append(own, m)
			}
		}
		own = sortedByCalendar(own)

		for i, m := range own {
			row := i + 2
			if m.Slot != nil {
				f.SetCellValue(sheet, cellRef(1, row), m.Slot.Date.Format("2006-01-02"))
				f.SetCellValue(sheet, cellRef(2, row), m.Slot.Date.Format("Mon"))
				f.SetCellValue(sheet, cellRef(3, row), m.Slot.Clock())
			}
			opponent := m.Pairing.TeamA
			if opponent == team {
				opponent = m.Pairing.TeamB
			}
			f.SetCellValue(sheet, cellRef(4, row), m.Round)
			f.SetCellValue(sheet, cellRef(5, row), opponent)
			f.SetCellValue(sheet, cellRef(6, row), string(m.Status))
		}

		widths := map[string]float64{"A": 14, "B": 8, "C": 8, "D": 8, "E": 30, "F": 18}
		for col, w := range widths {
			f.SetColWidth(sheet, col, col, w)
		}
	}
	return nil
}

// sortedByCalendar orders matches by slot date then start time;
// unscheduled matches go last, in round order.
func sortedByCalendar(matches []schedule.Match) []schedule.Match {
	out := append([]schedule.Match(nil), matches...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Slot, out[j].Slot
		switch {
		case a == nil && b == nil:
			return out[i].Round < out[j].Round
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Date.Equal(b.Date):
			return a.Date.Before(b.Date)
		default:
			return a.Start < b.Start
		}
	})
	return out
}

// sheetName fits a team name into Excel's 31-character sheet limit.
func sheetName(team string) string {
	if len(team) <= 31 {
		return team
	}
	return team[:28] + "..."
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
