package cmd

import (
	"fmt"
	"slices"

	"github.com/CosmoTheDev/seatwatch/internal/config"
	"github.com/CosmoTheDev/seatwatch/internal/notify"
	"github.com/spf13/cobra"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List notification channels and which ones are active",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		active := notify.ParseChannels(cfg.Notify.Streams)

		fmt.Println(headerStyle.Render("Channels"))
		for _, name := range notify.DefaultRegistry().Names() {
			state := dimStyle.Render("available")
			if slices.Contains(active, name) {
				state = successStyle.Render("active")
				if !cfg.Notify.Enable {
					state = warnStyle.Render("active (notifications disabled)")
				}
			}
			fmt.Printf("  %-16s %s\n", name, state)
		}
		if err := notify.DefaultRegistry().Validate(active); err != nil {
			fmt.Println()
			fmt.Println(warnStyle.Render("  " + err.Error()))
		}
		return nil
	},
}
