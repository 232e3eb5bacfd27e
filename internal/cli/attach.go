package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessland/devmon/internal/daemon"
	"github.com/tessland/devmon/internal/tui"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach an interactive dashboard to the running supervisor",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := apiAddr
		if !apiAddrExplicitlySet {
			state, err := daemon.RunningState("")
			if err != nil {
				if err == daemon.ErrNotRunning {
					return fmt.Errorf("devmon is not running; start it with 'devmon serve -d' first")
				}
				return err
			}
			addr = fmt.Sprintf("http://%s:%d", state.Host, state.Port)
		}

		client := NewClient(addr)
		if _, err := client.GetStatus(); err != nil {
			return err
		}
		return tui.Run(client)
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
