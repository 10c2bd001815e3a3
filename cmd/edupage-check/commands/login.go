package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	loginCode    string
	savePassFlag bool
)

func init() {
	loginCmd.Flags().StringVar(&loginCode, "code", "", "The second factor code, when the account asks for one.")
	loginCmd.Flags().BoolVar(&savePassFlag, "save-password", false, "Store the configured password in the OS keyring.")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login [--code <2fa>] [--save-password]",
	Short: "Logs in and prints the selected account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if savePassFlag && cfg.Password != "" {
			err := savePassword(cfg.Username, cfg.Password)
			if err != nil {
				return err
			}
		}

		s, err := openSession(cmd.Context(), cfg, loginCode)
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		account := s.Core().Account()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRows([]table.Row{
			{"User", account.UserID},
			{"Name", account.FullName()},
			{"Type", account.Type},
			{"Edupage", account.Edupage},
			{"Origin", s.Core().BaseURL()},
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
