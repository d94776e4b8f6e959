package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CosmoTheDev/seatwatch/internal/config"
	"github.com/CosmoTheDev/seatwatch/internal/cycle"
	"github.com/CosmoTheDev/seatwatch/internal/notify"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify recipients, channel config, templates, and the dedup store",
	Long: `Checks everything a cycle needs before it runs: the destinations file,
the channel list and its per-channel settings, the email template, the
SMTP credentials, the records file, and the dedup store.`,
	RunE: runDoctor,
}

type checkResult int

const (
	checkOK checkResult = iota
	checkWarn
	checkFail
)

func report(label string, res checkResult, detail string) {
	fmt.Print(label + " " + dots(label) + " ")
	switch res {
	case checkOK:
		fmt.Println(successStyle.Render("OK") + " " + dimStyle.Render(detail))
	case checkWarn:
		fmt.Println(warnStyle.Render("WARN") + " " + detail)
	default:
		fmt.Println(failStyle.Render("FAIL") + " " + detail)
	}
}

func dots(label string) string {
	n := 22 - len(label)
	if n < 3 {
		n = 3
	}
	return strings.Repeat(".", n)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true
	fail := func(label, detail string) {
		report(label, checkFail, detail)
		allOK = false
	}

	fmt.Println(headerStyle.Render("=== seatwatch doctor ==="))
	fmt.Println()

	if recipients, err := config.LoadDestinations(cfg.Scraper.DestinationsFile); err != nil {
		fail("Destinations", err.Error())
	} else {
		report("Destinations", checkOK, fmt.Sprintf("%d in %s", len(recipients), cfg.Scraper.DestinationsFile))
	}

	channels := notify.ParseChannels(cfg.Notify.Streams)
	if err := notify.DefaultRegistry().Validate(channels); err != nil {
		fail("Channels", err.Error())
	} else if len(channels) == 0 {
		fail("Channels", "notify.streams is empty")
	} else {
		report("Channels", checkOK, fmt.Sprintf("%v", channels))
	}
	if !cfg.Notify.Enable {
		report("Notifications", checkWarn, "disabled (set notify.enable to true)")
	}

	settings, err := config.LoadChannelSettings(cfg.Notify.ConfigFile)
	if err != nil {
		fail("Channel config", err.Error())
	} else {
		for _, name := range channels {
			if _, ok := settings[name]; !ok {
				report("Channel config", checkWarn, fmt.Sprintf("no entry for %s, defaults apply", name))
			}
		}
	}

	tmpl := filepath.Join(cfg.Notify.TemplateDir, cfg.Notify.EmailTemplate)
	if _, err := os.Stat(tmpl); err != nil {
		fail("Email template", err.Error())
	} else {
		report("Email template", checkOK, tmpl)
	}

	if mailer, err := notify.NewSMTPMailer(ctx, cfg.Notify.SMTP); err != nil {
		fail("SMTP", err.Error())
	} else if mailer.UsesOAuth2() {
		report("SMTP", checkOK, fmt.Sprintf("%s:%d (XOAUTH2)", cfg.Notify.SMTP.Host, cfg.Notify.SMTP.Port))
	} else {
		report("SMTP", checkWarn, fmt.Sprintf("%s:%d without OAuth2 credentials", cfg.Notify.SMTP.Host, cfg.Notify.SMTP.Port))
	}

	if recs, err := (cycle.FileSource{Path: cfg.Scraper.RecordsFile}).Records(ctx); err != nil {
		report("Records", checkWarn, err.Error())
	} else {
		report("Records", checkOK, fmt.Sprintf("%d in %s", len(recs), cfg.Scraper.RecordsFile))
	}

	if store, err := openStore(ctx, cfg); err != nil {
		fail("Dedup store", err.Error())
	} else {
		st, err := store.Load(ctx)
		if err != nil {
			fail("Dedup store", err.Error())
		} else {
			report("Dedup store", checkOK, fmt.Sprintf("%s, %d counters", cfg.Dedup.Driver, len(st.Sent)))
		}
		_ = store.Close()
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed, seatwatch is ready!"))
		return nil
	}
	fmt.Println(warnStyle.Render("Some checks failed, see above."))
	return fmt.Errorf("doctor found problems")
}
