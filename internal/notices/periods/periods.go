// Package periods resolves the named returns cycles used by the standard
// notice journey into concrete date windows.
package periods

import (
	"slices"
	"time"

	"wrls/internal/notices/models"
	dErrors "wrls/pkg/domain-errors"
)

const (
	AllYear      = "allYear"
	Summer       = "summer"
	QuarterOne   = "quarterOne"
	QuarterTwo   = "quarterTwo"
	QuarterThree = "quarterThree"
	QuarterFour  = "quarterFour"
)

// definition describes a cycle by the month and day it ends and its due
// date, which always falls on the 28th of the month after the end month.
type definition struct {
	startMonth time.Month
	endMonth   time.Month
	endDay     int
	summer     bool
	quarterly  bool
}

var definitions = map[string]definition{
	AllYear:      {startMonth: time.April, endMonth: time.March, endDay: 31},
	Summer:       {startMonth: time.November, endMonth: time.October, endDay: 31, summer: true},
	QuarterOne:   {startMonth: time.April, endMonth: time.June, endDay: 30, quarterly: true},
	QuarterTwo:   {startMonth: time.July, endMonth: time.September, endDay: 30, quarterly: true},
	QuarterThree: {startMonth: time.October, endMonth: time.December, endDay: 31, quarterly: true},
	QuarterFour:  {startMonth: time.January, endMonth: time.March, endDay: 31, quarterly: true},
}

// dueDay is the day of the month after the period end by which returns are due.
const dueDay = 28

// Names lists the supported period names.
func Names() []string {
	return []string{AllYear, Summer, QuarterOne, QuarterTwo, QuarterThree, QuarterFour}
}

// Determine resolves name to the earliest period whose due date is today or later.
func Determine(name string, today time.Time) (*models.ReturnsPeriod, error) {
	def, ok := definitions[name]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown returns period: "+name)
	}

	today = truncate(today)
	for year := today.Year() - 1; year <= today.Year()+1; year++ {
		p := def.instance(name, year)
		if !p.DueDate.Before(today) {
			return p, nil
		}
	}
	// unreachable for well formed definitions: the +1 year instance is always due later
	return def.instance(name, today.Year()+1), nil
}

// Upcoming returns every named period as determined for today, ordered by
// due date then name.
func Upcoming(today time.Time) []models.ReturnsPeriod {
	out := make([]models.ReturnsPeriod, 0, len(definitions))
	for _, name := range Names() {
		p, err := Determine(name, today)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	slices.SortStableFunc(out, func(a, b models.ReturnsPeriod) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return out
}

// instance builds the period that ends in endYear.
func (d definition) instance(name string, endYear int) *models.ReturnsPeriod {
	end := time.Date(endYear, d.endMonth, d.endDay, 0, 0, 0, 0, time.UTC)

	startYear := endYear
	if d.startMonth > d.endMonth {
		startYear--
	}
	start := time.Date(startYear, d.startMonth, 1, 0, 0, 0, 0, time.UTC)

	due := time.Date(endYear, d.endMonth+1, dueDay, 0, 0, 0, 0, time.UTC)

	return &models.ReturnsPeriod{
		Name:      name,
		StartDate: start,
		EndDate:   end,
		DueDate:   due,
		Summer:    d.summer,
		Quarterly: d.quarterly,
	}
}

func truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
