package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Loads the whole account and prints how much of everything was linked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cfg, "")
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		g := s.Graph()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Kind", "Count"})
		t.AppendRows([]table.Row{
			{"School year", g.Year},
			{"Seasons", len(g.Seasons)},
			{"Classes", len(g.Classes)},
			{"Classrooms", len(g.Classrooms)},
			{"Teachers", len(g.Teachers)},
			{"Students", len(g.Students)},
			{"Parents", len(g.Parents)},
			{"Subjects", len(g.Subjects)},
			{"Periods", len(g.Periods)},
			{"Plans", len(g.Plans)},
			{"Timetables", len(g.Timetables)},
			{"Grades", len(g.Grades)},
			{"Applications", len(g.Applications)},
			{"Homeworks", len(g.Homeworks)},
			{"Tests", len(g.Tests)},
			{"Messages", len(g.Messages)},
			{"Timeline", len(g.Timeline)},
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
