package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CosmoTheDev/seatwatch/internal/config"
	"github.com/CosmoTheDev/seatwatch/internal/dedup"
	"github.com/spf13/cobra"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Inspect and reset the repeat-notification counters",
}

var dedupShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored send counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Load(ctx)
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render("Dedup state"))
		fmt.Printf("  Driver        : %s\n", cfg.Dedup.Driver)
		fmt.Printf("  Max per window: %d\n", cfg.Dedup.MaxSame)
		fmt.Printf("  Window        : %s\n", cfg.Dedup.Window)
		if st.LastActivity.IsZero() {
			fmt.Printf("  Last activity : %s\n", dimStyle.Render("never"))
		} else {
			age := time.Since(st.LastActivity).Round(time.Second)
			line := fmt.Sprintf("%s (%s ago)", st.LastActivity.Local().Format(time.DateTime), age)
			if st.Stale(time.Now(), cfg.Dedup.Window) {
				line = warnStyle.Render(line + ", stale")
			}
			fmt.Printf("  Last activity : %s\n", line)
		}
		fmt.Println()

		if len(st.Sent) == 0 {
			fmt.Println(dimStyle.Render("  no facts sent in this window"))
			return nil
		}
		hashes := make([]string, 0, len(st.Sent))
		for h := range st.Sent {
			hashes = append(hashes, h)
		}
		sort.Strings(hashes)
		for _, h := range hashes {
			n := st.Sent[h]
			count := fmt.Sprintf("%d/%d", n, cfg.Dedup.MaxSame)
			if n >= cfg.Dedup.MaxSame {
				count = warnStyle.Render(count + " suppressed")
			}
			fmt.Printf("  %-12s %s\n", h, count)
		}
		return nil
	},
}

var dedupResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all send counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		var cleared int
		if err := store.Update(ctx, func(s *dedup.State) error {
			cleared = len(s.Sent)
			s.Reset()
			return nil
		}); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("  cleared %d counters", cleared)))
		return nil
	},
}

func init() {
	dedupCmd.AddCommand(dedupShowCmd, dedupResetCmd)
}
