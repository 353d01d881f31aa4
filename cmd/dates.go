package cmd

import (
	"fmt"
	"time"

	"github.com/ginjaninja78/posledger/internal/sale"
)

// dateFlagLayout is DDMMYYYY.
const dateFlagLayout = "02012006"

// DateFlagError is returned for a --startdate or --enddate value that is not
// a DDMMYYYY date.
type DateFlagError struct {
	Flag  string
	Value string
	Err   error
}

func (e *DateFlagError) Error() string {
	return fmt.Sprintf("could not convert --%s '%s' to a date (expected DDMMYYYY): %v", e.Flag, e.Value, e.Err)
}

func (e *DateFlagError) Unwrap() error { return e.Err }

// resolveWindow turns the date flags into the sale window.
//
// Without flags the window is [today - windowDays, today + 1 day). A flag
// replaces the matching bound with midnight of the given day, local time.
// The end bound is exclusive.
func resolveWindow(now time.Time, startFlag, endFlag string, windowDays int) (sale.Window, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	w := sale.Window{
		Start: today.AddDate(0, 0, -windowDays),
		End:   today.AddDate(0, 0, 1),
	}

	if startFlag != "" {
		start, err := time.ParseInLocation(dateFlagLayout, startFlag, now.Location())
		if err != nil {
			return sale.Window{}, &DateFlagError{Flag: "startdate", Value: startFlag, Err: err}
		}
		w.Start = start
	}
	if endFlag != "" {
		end, err := time.ParseInLocation(dateFlagLayout, endFlag, now.Location())
		if err != nil {
			return sale.Window{}, &DateFlagError{Flag: "enddate", Value: endFlag, Err: err}
		}
		w.End = end
	}

	if !w.Start.Before(w.End) {
		return sale.Window{}, fmt.Errorf("empty window %s: start date must be before end date", w)
	}
	return w, nil
}
