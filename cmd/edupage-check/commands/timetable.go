package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"edupage-client/lib/platforms/edupage/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(timetableCmd)
}

func parseDay(args []string, now time.Time) (time.Time, error) {
	if len(args) == 0 {
		return now, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, args[0], now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("date must look like 2024-03-04: %w", err)
	}
	return day, nil
}

func lessonRows(tt *model.Timetable) []table.Row {
	rows := make([]table.Row, 0, len(tt.Lessons))
	for _, lesson := range tt.Lessons {
		var period, hours, subject string
		if lesson.Period != nil {
			period = string(lesson.Period.Short)
			hours = fmt.Sprintf("%s-%s", lesson.Period.StartTime, lesson.Period.EndTime)
		}
		if lesson.Subject != nil {
			subject = string(lesson.Subject.Name)
		}
		var teachers []string
		for _, teacher := range lesson.Teachers {
			teachers = append(teachers, teacher.FullName())
		}
		var classrooms []string
		for _, classroom := range lesson.Classrooms {
			classrooms = append(classrooms, string(classroom.Short))
		}
		rows = append(rows, table.Row{
			period,
			hours,
			subject,
			strings.Join(teachers, ", "),
			strings.Join(classrooms, ", "),
			lesson.IsOnline(),
		})
	}
	return rows
}

var timetableCmd = &cobra.Command{
	Use:   "timetable [yyyy-mm-dd]",
	Short: "Prints the lessons of a day, today by default.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDay(args, time.Now())
		if err != nil {
			return err
		}

		s, err := openSession(cmd.Context(), cfg, "")
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		tt, err := s.TimetableForDate(cmd.Context(), day)
		if err != nil {
			return err
		}
		if tt == nil {
			fmt.Printf("no timetable for %s\n", day.Format(time.DateOnly))
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(fmt.Sprintf("%s (week %s)", tt.Date.Format(time.DateOnly), tt.Week))
		t.AppendHeader(table.Row{"Period", "Time", "Subject", "Teachers", "Classrooms", "Online"})
		t.AppendRows(lessonRows(tt))
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
