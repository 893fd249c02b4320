package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"caresched/backend/internal/transport/view"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "table":
		format = "table"
	case "yaml", "json":
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, yaml or json)", format)
	}
	return &printer{w: w, format: format}, nil
}

// structured writes v as yaml or json. It reports false for table output.
func (p *printer) structured(v any) (bool, error) {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func (p *printer) table(header string, rows func(w io.Writer)) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func (p *printer) bookings(bs []view.Booking) error {
	if done, err := p.structured(bs); done {
		return err
	}
	return p.table("ID\tPROVIDER\tCLIENT\tSTART\tEND\tTYPE\tURGENCY\tSTATUS", func(w io.Writer) {
		for _, b := range bs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				b.ID, b.ProviderID, b.ClientID, stamp(b.StartTime), stamp(b.EndTime), b.AppointmentType, b.Urgency, b.Status)
		}
	})
}

func (p *printer) slots(ss []view.Slot) error {
	if done, err := p.structured(ss); done {
		return err
	}
	return p.table("START\tEND\tPROVIDER\tNAME\tSCORE\tLOAD\tPREF\tURGENCY", func(w io.Writer) {
		for _, s := range ss {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%.2f\t%.2f\t%.2f\n",
				stamp(s.StartTime), stamp(s.EndTime), s.ProviderID, s.ProviderName, s.Score,
				s.Breakdown.Load, s.Breakdown.Preference, s.Breakdown.Urgency)
		}
	})
}

func (p *printer) providers(ps []view.Provider) error {
	if done, err := p.structured(ps); done {
		return err
	}
	return p.table("ID\tNAME\tSPECIALTY\tACTIVE\tEMAIL", func(w io.Writer) {
		for _, pr := range ps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", pr.ID, pr.Name, pr.Specialty, pr.Active, pr.Email)
		}
	})
}

func (p *printer) lines(label string, items []string) error {
	if done, err := p.structured(map[string][]string{label: items}); done {
		return err
	}
	for _, it := range items {
		if _, err := fmt.Fprintln(p.w, it); err != nil {
			return err
		}
	}
	return nil
}

func stamp(t time.Time) string {
	return t.Format("2006-01-02 15:04Z07:00")
}
