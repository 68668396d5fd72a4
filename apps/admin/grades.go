package main

import (
	"context"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/user"
)

// periodFlags are the flags naming a subject, class and period.
type periodFlags struct {
	subject, class, trimester *int
	year                      *string
}

func addPeriodFlags(cmd command) periodFlags {
	return periodFlags{
		subject:   cmd.Int("subject", 0, "The subject ID."),
		class:     cmd.Int("class", 0, "The class ID."),
		year:      cmd.String("year", "", "The school year, e.g. 2024/2025."),
		trimester: cmd.Int("trimester", 0, "The trimester, 1 to 3."),
	}
}

// parseScores parses the -mac, -pp and -pt flags; empty ones stay absent.
func parseScores(mac, pp, pt string) (grading.SubScores, error) {
	var scores grading.SubScores
	for c, raw := range map[grading.Component]string{
		grading.ContinuousAssessment: mac,
		grading.WrittenTest1:         pp,
		grading.WrittenTest2:         pt,
	} {
		v, err := grading.ParseScore(strings.TrimSpace(raw))
		if err != nil {
			return grading.SubScores{}, errors.Wrapf(err, "-%s", strings.ToLower(string(c)))
		}
		scores = scores.With(c, v)
	}
	return scores, nil
}

// parseComponents parses a comma separated list such as "MAC,PT".
func parseComponents(s string) ([]grading.Component, error) {
	var comps []grading.Component
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		c, err := grading.ParseComponent(part)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, nil
}

func (cli *commandLine) enterCmd(args []string) error {
	cmd := cli.newCommand("enter", true)
	studentID := cmd.Int("student", 0, "The student ID.")
	period := addPeriodFlags(cmd)
	teacherID := cmd.Int("teacher", 0, "The teacher ID.")
	mac := cmd.String("mac", "", "Continuous assessment score, 0 to 20.")
	pp := cmd.String("pp", "", "First written test score, 0 to 20.")
	pt := cmd.String("pt", "", "Second written test score, 0 to 20.")
	retract := cmd.String("retract", "", "Comma separated components to clear: MAC,PP,PT.")
	notes := cmd.String("notes", "", "Notes about the grade.")
	if err := cmd.parse(args, "student", "subject", "class", "year", "trimester"); err != nil {
		return err
	}

	scores, err := parseScores(*mac, *pp, *pt)
	if err != nil {
		return err
	}
	retracted, err := parseComponents(*retract)
	if err != nil {
		return errors.Wrap(err, "-retract")
	}

	ctx := context.Background()
	usr, err := cli.loginFor(ctx, cmd, user.CapGradeEntry)
	if err != nil {
		return err
	}

	rec, err := cli.gradeSvc.Enter(ctx, grade.Entry{
		Key: grade.Key{
			StudentID:  *studentID,
			SubjectID:  *period.subject,
			ClassID:    *period.class,
			SchoolYear: *period.year,
			Trimester:  *period.trimester,
		},
		TeacherID: *teacherID,
		Scores:    scores,
		Retract:   retracted,
		Notes:     *notes,
	}, usr)
	if err != nil {
		return err
	}
	cli.printRecords([]grade.Record{rec})
	return nil
}

func (cli *commandLine) importCmd(args []string) error {
	cmd := cli.newCommand("import", true)
	file := cmd.String("file", "", "Path of a CSV file with a header line: student,mac,pp,pt,notes.")
	period := addPeriodFlags(cmd)
	teacherID := cmd.Int("teacher", 0, "The teacher ID.")
	if err := cmd.parse(args, "file", "subject", "class", "year", "trimester"); err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	rows, err := grade.ReadRows(f)
	if err != nil {
		return errors.Wrap(err, *file)
	}

	ctx := context.Background()
	usr, err := cli.loginFor(ctx, cmd, user.CapGradeEntry)
	if err != nil {
		return err
	}

	res, err := cli.gradeSvc.EnterBatch(ctx, grade.Batch{
		SubjectID:  *period.subject,
		ClassID:    *period.class,
		TeacherID:  *teacherID,
		SchoolYear: *period.year,
		Trimester:  *period.trimester,
		Rows:       rows,
	}, usr)
	if err != nil {
		return err
	}

	cli.printRecords(res.Saved)
	color.New(color.FgGreen).Fprintf(cli.out, "%d of %d rows saved\n", len(res.Saved), len(rows))
	if len(res.Failures) == 0 {
		return nil
	}
	red := color.New(color.FgRed)
	for _, failure := range res.Failures {
		red.Fprintf(cli.out, "student %d:\n", failure.StudentID)
		printError(cli.out, failure.Err)
	}
	return errors.Errorf("%d rows failed", len(res.Failures))
}

func (cli *commandLine) recalculateCmd(args []string) error {
	cmd := cli.newCommand("recalculate", true)
	year := cmd.String("year", "", "Only recalculate this school year.")
	classID := cmd.Int("class", 0, "Only recalculate this class.")
	if err := cmd.parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := cli.loginFor(ctx, cmd, user.CapAcademicsEdit); err != nil {
		return err
	}
	stats, err := cli.gradeSvc.Recalculate(ctx, grade.RecordFilter{SchoolYear: *year, ClassID: *classID})
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cli.out, "%d records scanned, %d updated\n", stats.Scanned, stats.Updated)
	return nil
}

func (cli *commandLine) historyCmd(args []string) error {
	cmd := cli.newCommand("history", true)
	recordID := cmd.String("record", "", "The grade record ID.")
	if err := cmd.parse(args, "record"); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := cli.loginFor(ctx, cmd, user.CapAcademicsView); err != nil {
		return err
	}
	changes, err := cli.gradeSvc.History(ctx, *recordID)
	if err != nil {
		return err
	}

	usernames := make(map[string]string)
	username := func(id string) string {
		if name, ok := usernames[id]; ok {
			return name
		}
		name := id
		if usr, err := cli.usrSvc.GetByID(ctx, id); err == nil {
			name = usr.Username
		}
		usernames[id] = name
		return name
	}

	table := cli.newTable("When", "Component", "Previous", "Current", "By")
	for _, ch := range changes {
		table.Append([]string{
			ch.ChangedAt.Format(timeLayout),
			string(ch.Component),
			grading.FormatScore(ch.Previous),
			grading.FormatScore(ch.Current),
			username(ch.ChangedBy),
		})
	}
	cli.title("History of record %s", *recordID)
	table.Render()
	return nil
}

func (cli *commandLine) printRecords(recs []grade.Record) {
	table := cli.newTable("Record", "Student", "Subject", "Class", "Year", "Trimester", "MAC", "PP", "PT", "Average", "Classification")
	for _, rec := range recs {
		table.Append(append([]string{
			rec.ID,
			itoa(rec.StudentID),
			itoa(rec.SubjectID),
			itoa(rec.ClassID),
			rec.SchoolYear,
			itoa(rec.Trimester),
		}, recordCells(rec)...))
	}
	table.Render()
}

// recordCells renders the sub-scores, average and classification of rec.
func recordCells(rec grade.Record) []string {
	return []string{
		grading.FormatScore(rec.Scores.ContinuousAssessment),
		grading.FormatScore(rec.Scores.WrittenTest1),
		grading.FormatScore(rec.Scores.WrittenTest2),
		grading.FormatScore(rec.Result.Average),
		orDash(string(rec.Result.Classification)),
	}
}

func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(grading.Precision) + "%"
}
