package main

import (
	"context"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/user"
)

const dateLayout = "2006-01-02"

// parseTime accepts RFC 3339 times and plain dates (UTC).
// A plain date ends at the last instant of its day when endOfDay is set.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.Errorf("%q is neither a date (%s) nor an RFC 3339 time", s, dateLayout)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return t, nil
}

func (cli *commandLine) addPeriodCmd(args []string) error {
	cmd := cli.newCommand("addperiod", true)
	name := cmd.String("name", "", "The period name.")
	component := cmd.String("component", "", "The assessed component: MAC, PP or PT.")
	trimester := cmd.Int("trimester", 0, "The trimester, 1 to 3.")
	year := cmd.String("year", "", "The school year, e.g. 2024/2025.")
	from := cmd.String("from", "", "First day of entry, e.g. 2025-01-06.")
	to := cmd.String("to", "", "Last day of entry, included.")
	notes := cmd.String("notes", "", "Notes about the period.")
	if err := cmd.parse(args, "name", "component", "trimester", "year", "from", "to"); err != nil {
		return err
	}

	startsAt, err := parseTime(*from, false)
	if err != nil {
		return errors.Wrap(err, "-from")
	}
	endsAt, err := parseTime(*to, true)
	if err != nil {
		return errors.Wrap(err, "-to")
	}

	ctx := context.Background()
	if _, err := cli.loginFor(ctx, cmd, user.CapPeriodsCreate); err != nil {
		return err
	}
	p, err := cli.gradeSvc.CreatePeriod(ctx, grade.NewPeriod{
		Name:       *name,
		Component:  grading.Component(strings.ToUpper(strings.TrimSpace(*component))),
		Trimester:  *trimester,
		SchoolYear: *year,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Notes:      *notes,
	})
	if err != nil {
		return err
	}
	cli.printPeriods([]grade.AssessmentPeriod{p})
	return nil
}

func (cli *commandLine) closePeriodCmd(args []string) error {
	cmd := cli.newCommand("closeperiod", true)
	id := cmd.String("id", "", "The period ID.")
	if err := cmd.parse(args, "id"); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := cli.loginFor(ctx, cmd, user.CapPeriodsEdit); err != nil {
		return err
	}
	p, err := cli.gradeSvc.ClosePeriod(ctx, *id)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cli.out, "period %s closed\n", p.ID)
	return nil
}

func (cli *commandLine) periodsCmd(args []string) error {
	cmd := cli.newCommand("periods", true)
	year := cmd.String("year", "", "Only list this school year.")
	open := cmd.Bool("open", false, "Only list the periods open right now.")
	if err := cmd.parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := cli.loginFor(ctx, cmd, user.CapPeriodsView); err != nil {
		return err
	}

	var (
		periods []grade.AssessmentPeriod
		err     error
	)
	if *open {
		periods, err = cli.gradeSvc.OpenPeriods(ctx, *year)
	} else {
		periods, err = cli.gradeSvc.ListPeriods(ctx, grade.PeriodFilter{SchoolYear: *year})
	}
	if err != nil {
		return err
	}
	cli.printPeriods(periods)
	return nil
}

func (cli *commandLine) printPeriods(periods []grade.AssessmentPeriod) {
	table := cli.newTable("ID", "Name", "Component", "Trimester", "Year", "From", "To", "Active")
	for _, p := range periods {
		active := "no"
		if p.Active {
			active = "yes"
		}
		table.Append([]string{
			p.ID,
			p.Name,
			string(p.Component),
			itoa(p.Trimester),
			p.SchoolYear,
			p.StartsAt.Format(timeLayout),
			p.EndsAt.Format(timeLayout),
			active,
		})
	}
	table.Render()
}
