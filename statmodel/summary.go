package statmodel

import (
	"fmt"
	"strings"
)

// Fmter formats a column of values, given the column header.
type Fmter func(interface{}, string) []string

// SummaryTable holds the summary values for a fitted model.
type SummaryTable struct {

	// Title
	Title string

	// Column names
	ColNames []string

	// Formatters for the column values
	ColFmt []Fmter

	// Cols[j] is the j^th column, usually a []string or []float64.
	Cols []interface{}

	// Key/value lines shown above the table, two per row
	Top []string

	// Messages displayed below the table
	Msg []string
}

// FormatStrings left-aligns a column of strings.
func FormatStrings(x interface{}, h string) []string {
	y := x.([]string)
	w := len(h)
	for _, s := range y {
		if len(s) > w {
			w = len(s)
		}
	}
	z := make([]string, len(y))
	for i, s := range y {
		z[i] = fmt.Sprintf("%-*s", w, s)
	}
	return z
}

// FormatFloats formats a column of numbers with four decimals.
func FormatFloats(x interface{}, h string) []string {
	y := x.([]float64)
	z := make([]string, len(y))
	for i, v := range y {
		z[i] = fmt.Sprintf("%10.4f", v)
	}
	return z
}

// CoefTable fills the columns of a summary table with the estimates in
// rslt.  If the covariance matrix is available the table also shows standard
// errors, two-standard-error bounds, Z-scores and p-values; otherwise only
// the estimates are shown, with a message.
func CoefTable(rslt BaseResultser, title string, top []string) *SummaryTable {

	sum := &SummaryTable{
		Title: title,
		Top:   top,
	}

	if rslt.VCov() == nil {
		sum.ColNames = []string{"Parameter", "Estimate"}
		sum.ColFmt = []Fmter{FormatStrings, FormatFloats}
		sum.Cols = []interface{}{rslt.Names(), rslt.Params()}
		sum.Msg = []string{"The information matrix is singular"}
		return sum
	}

	var lcb, ucb []float64
	se := rslt.StdErr()
	for j, v := range rslt.Params() {
		lcb = append(lcb, v-2*se[j])
		ucb = append(ucb, v+2*se[j])
	}

	sum.ColNames = []string{"Parameter", "Estimate", "SE", "LCB", "UCB", "Z-score", "P-value"}
	fn := FormatFloats
	sum.ColFmt = []Fmter{FormatStrings, fn, fn, fn, fn, fn, fn}
	sum.Cols = []interface{}{
		rslt.Names(),
		rslt.Params(),
		se,
		lcb,
		ucb,
		rslt.ZScores(),
		rslt.PValues(),
	}

	return sum
}

// String returns the table as a string.
func (s *SummaryTable) String() string {

	var tab [][]string
	var wx []int
	for j, c := range s.Cols {
		u := s.ColFmt[j](c, s.ColNames[j])
		tab = append(tab, u)
		w := len(s.ColNames[j])
		if len(u) > 0 && len(u[0]) > w {
			w = len(u[0])
		}
		wx = append(wx, w+1)
	}

	// Width of the key/value block, two entries per line
	const gap = 6
	var tw [2]int
	for j, x := range s.Top {
		if len(x) > tw[j%2] {
			tw[j%2] = len(x)
		}
	}

	width := len(s.Title)
	var cw int
	for _, w := range wx {
		cw += w
	}
	if cw > width {
		width = cw
	}
	if tw[0]+gap+tw[1] > width {
		width = tw[0] + gap + tw[1]
	}

	var b strings.Builder

	pad := (width - len(s.Title)) / 2
	b.WriteString(strings.Repeat(" ", pad) + s.Title + "\n")
	b.WriteString(strings.Repeat("=", width) + "\n")

	for j, x := range s.Top {
		if j%2 == 0 {
			b.WriteString(fmt.Sprintf("%-*s", tw[0]+gap, x))
		} else {
			b.WriteString(x + "\n")
		}
	}
	if len(s.Top)%2 == 1 {
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("-", width) + "\n")

	for j, c := range s.ColNames {
		b.WriteString(fmt.Sprintf("%*s", wx[j], c))
	}
	b.WriteString("\n" + strings.Repeat("-", width) + "\n")

	if len(tab) > 0 {
		for i := range tab[0] {
			for j := range tab {
				b.WriteString(fmt.Sprintf("%*s", wx[j], tab[j][i]))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString(strings.Repeat("-", width) + "\n")

	for _, msg := range s.Msg {
		b.WriteString(msg + "\n")
	}

	return b.String()
}
