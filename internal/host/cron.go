package host

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"sitedeploy/internal/util/execx"
)

// CronLine is the crontab entry that runs script on schedule.
func CronLine(schedule, script string) string {
	return fmt.Sprintf("%s %s >/dev/null 2>&1", schedule, script)
}

// InstallRenewalSchedule makes the root crontab contain exactly one entry
// invoking script. Other entries are preserved.
func (h *Host) InstallRenewalSchedule(ctx context.Context, schedule, script string) (bool, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return false, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	current, err := h.readCrontab(ctx)
	if err != nil {
		return false, err
	}

	want := CronLine(schedule, script)
	var kept []string
	found := 0
	for _, l := range strings.Split(current, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if strings.Contains(l, script) {
			if l == want {
				found++
			}
			continue
		}
		kept = append(kept, l)
	}
	if found == 1 && strings.Count(current, script) == 1 {
		return false, nil
	}

	kept = append(kept, want)
	table := strings.Join(kept, "\n") + "\n"
	if err := h.exec(ctx, execx.Command("crontab", "-").WithStdin(table)); err != nil {
		return false, fmt.Errorf("write crontab: %w", err)
	}
	return true, nil
}

// readCrontab returns the current table; a missing one is empty.
func (h *Host) readCrontab(ctx context.Context) (string, error) {
	res, err := h.run.Run(ctx, execx.Command("crontab", "-l"))
	if err == nil {
		return res.Stdout, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if res.ExitCode == 1 && strings.Contains(res.Stderr, "no crontab") {
		return "", nil
	}
	return "", fmt.Errorf("read crontab: %w", err)
}

// NextRun returns when schedule fires next after the given time.
func NextRun(schedule string, after time.Time) (time.Time, error) {
	s, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(after), nil
}
