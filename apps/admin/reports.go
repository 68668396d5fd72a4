package main

import (
	"context"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/user"
)

const timeLayout = "2006-01-02 15:04"

func itoa(i int) string { return strconv.Itoa(i) }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (cli *commandLine) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader(header)
	return table
}

func (cli *commandLine) title(format string, a ...interface{}) {
	color.New(color.FgYellow).Fprintf(cli.out, "\n"+format+"\n", a...)
}

func (cli *commandLine) reportCmd(args []string) error {
	cmd := cli.newCommand("report", true)
	period := addPeriodFlags(cmd)
	if err := cmd.parse(args, "class", "subject", "year", "trimester"); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := cli.loginFor(ctx, cmd, user.CapAcademicsView); err != nil {
		return err
	}
	report, err := cli.gradeSvc.ClassReport(ctx, *period.class, *period.subject, *period.year, *period.trimester)
	if err != nil {
		return err
	}

	table := cli.newTable("Student", "MAC", "PP", "PT", "Average", "Classification")
	for _, rec := range report.Records {
		table.Append(append([]string{itoa(rec.StudentID)}, recordCells(rec)...))
	}
	cli.title("Class %d, subject %d, trimester %d, %s", *period.class, *period.subject, *period.trimester, *period.year)
	table.Render()

	sum := report.Summary
	summary := cli.newTable("Students", "Graded", "Pending", "Approved", "Failed", "Mean", "Pass rate")
	summary.Append([]string{
		itoa(sum.Total),
		itoa(sum.Graded),
		itoa(sum.Pending),
		itoa(sum.Approved),
		itoa(sum.Failed),
		grading.FormatScore(sum.Mean),
		formatPercent(sum.PassRate),
	})
	summary.Render()
	return nil
}

func (cli *commandLine) transcriptCmd(args []string) error {
	cmd := cli.newCommand("transcript", true)
	studentID := cmd.Int("student", 0, "The student ID.")
	year := cmd.String("year", "", "The school year, e.g. 2024/2025.")
	if err := cmd.parse(args, "student", "year"); err != nil {
		return err
	}

	ctx := context.Background()
	usr, err := cli.login(ctx, cmd)
	if err != nil {
		return err
	}
	// students may only see their own transcript
	ownTranscript := usr.Can(user.CapOwnGradesView) && usr.StudentID == *studentID
	if !ownTranscript {
		if err := cli.usrSvc.Authorize(usr, user.CapAcademicsView); err != nil {
			return err
		}
	}

	tr, err := cli.gradeSvc.Transcript(ctx, *studentID, *year)
	if err != nil {
		return err
	}
	table := cli.newTable("Subject", "T1", "T2", "T3", "Final", "Classification", "Verdict")
	for _, st := range tr.Subjects {
		table.Append(subjectCells(st))
	}
	cli.title("Student %d, %s", tr.StudentID, tr.SchoolYear)
	table.Render()
	return nil
}

func (cli *commandLine) sheetCmd(args []string) error {
	cmd := cli.newCommand("sheet", true)
	classID := cmd.Int("class", 0, "The class ID.")
	year := cmd.String("year", "", "The school year, e.g. 2024/2025.")
	if err := cmd.parse(args, "class", "year"); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := cli.loginFor(ctx, cmd, user.CapAcademicsView); err != nil {
		return err
	}
	sheet, err := cli.gradeSvc.ClassSheet(ctx, *classID, *year)
	if err != nil {
		return err
	}

	table := cli.newTable("Student", "Subject", "T1", "T2", "T3", "Final", "Classification", "Verdict")
	table.SetAutoMergeCells(true)
	for _, tr := range sheet.Transcripts {
		for _, st := range tr.Subjects {
			table.Append(append([]string{itoa(tr.StudentID)}, subjectCells(st)...))
		}
	}
	cli.title("Class %d, %s", sheet.ClassID, sheet.SchoolYear)
	table.Render()
	return nil
}

// subjectCells renders the subject, period averages and year result of st.
func subjectCells(st grade.SubjectTranscript) []string {
	cells := []string{itoa(st.SubjectID)}
	for _, p := range st.Periods {
		cells = append(cells, grading.FormatScore(p.Average))
	}
	return append(cells,
		grading.FormatScore(st.Year.FinalAverage),
		orDash(string(st.Year.Classification)),
		orDash(string(st.Year.Verdict)),
	)
}
