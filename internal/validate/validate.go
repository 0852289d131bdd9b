package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/tallyconv/internal/model"
)

// Rule messages are part of the client contract; keep them stable.
const (
	msgMandatoryEmpty = "Mandatory field cannot be empty"
	msgNotNumeric     = "Value must be numeric"
	msgBadDate        = "Invalid date format"
	msgOCRConfusion   = "Possible OCR glyph confusion"
)

// confusableDigraphs are visually-confusable letter/digit pairs OCR commonly
// swaps, in either order.
var confusableDigraphs = []string{"O0", "0O", "l1", "1l", "S5", "5S"}

// Validate runs every rule class over every row and returns positioned
// findings in row-major order, then rule order (mandatory, numeric, date,
// OCR-confusion) within each row. It never mutates the table, never
// deduplicates across rules for the same cell, and never fails: findings are
// its normal successful output.
func Validate(table *model.TableData, profile Profile) []model.Finding {
	var findings []model.Finding

	for ri := range table.Rows {
		for _, col := range profile.MandatoryColumns {
			cell, ok := cellAt(table, ri, col)
			if !ok {
				continue
			}
			if strings.TrimSpace(cell.Value.String()) == "" {
				findings = append(findings, finding(ri, col, model.FindingError, model.SeverityCritical, msgMandatoryEmpty))
			}
		}

		for _, col := range profile.NumericColumns {
			cell, ok := cellAt(table, ri, col)
			if !ok {
				continue
			}
			if !isNumeric(cell.Value.String()) {
				findings = append(findings, finding(ri, col, model.FindingError, model.SeverityCritical, msgNotNumeric))
			}
		}

		if profile.DateColumn != nil {
			if cell, ok := cellAt(table, ri, *profile.DateColumn); ok {
				if !isISODate(cell.Value.String()) {
					findings = append(findings, finding(ri, *profile.DateColumn, model.FindingWarning, model.SeverityWarning, msgBadDate))
				}
			}
		}

		for ci := range table.Headers {
			cell, ok := cellAt(table, ri, ci)
			if !ok {
				continue
			}
			if hasConfusableDigraph(cell.Value.Raw) {
				findings = append(findings, finding(ri, ci, model.FindingWarning, model.SeverityInfo, msgOCRConfusion))
			}
		}
	}

	return findings
}

func cellAt(table *model.TableData, row, col int) (model.TableCell, bool) {
	if col < 0 || col >= len(table.Headers) {
		return model.TableCell{}, false
	}
	return table.Cell(row, table.Headers[col])
}

func finding(row, col int, kind model.FindingKind, sev model.Severity, msg string) model.Finding {
	return model.Finding{Row: row, Col: col, Kind: kind, Severity: sev, Message: msg}
}

// isNumeric reports whether s parses as a number once thousands separators
// are stripped.
func isNumeric(s string) bool {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isoDatePattern enforces the digit widths; time.Parse alone accepts
// unpadded months and days.
var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// isISODate requires a strict 4-digit year, 2-digit month, 2-digit day
// calendar date.
func isISODate(s string) bool {
	s = strings.TrimSpace(s)
	if !isoDatePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func hasConfusableDigraph(raw string) bool {
	for _, d := range confusableDigraphs {
		if strings.Contains(raw, d) {
			return true
		}
	}
	return false
}
