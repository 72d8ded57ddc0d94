package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sitedeploy/internal/backup"
	"sitedeploy/internal/host"
	"sitedeploy/internal/stack"
	"sitedeploy/internal/util/atomic"
	"sitedeploy/internal/workflow"
)

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) printWarnings(rs *runState) {
	ws := rs.warnings()
	if len(ws) == 0 {
		return
	}
	a.printf("\nWarnings (%d):\n", len(ws))
	for _, w := range ws {
		a.printf("  %-26s %s\n", w.Name, w.Message)
	}
}

func (a *App) printProvisionSummary(ctx context.Context, rs *runState) {
	d := a.cfg.Site.Domain
	a.printf("Provisioning finished for %s\n\n", d)
	a.printf("  http        : http://%s\n", d)
	if rs.tls {
		a.printf("  https       : https://%s\n", d)
	} else {
		a.printf("  https       : not configured (serving HTTP only)\n")
	}
	a.printf("  root        : %s\n", a.paths.Root)
	a.printf("  email       : %s\n", a.cfg.Site.Email)
	if rs.tls {
		a.printCertificate(ctx)
		if next, err := host.NextRun(a.cfg.Certs.RenewSchedule, a.now()); err == nil {
			a.printf("  next renew  : %s (%s)\n", next.Format(time.RFC3339), humanize.Time(next))
		}
	}
	a.printCommands()
	a.printWarnings(rs)
}

func (a *App) printUpdateSummary(rs *runState, snapshot *backup.Snapshot, files, removed int) {
	a.printf("Update finished for %s\n\n", a.cfg.Site.Domain)
	a.printf("  site        : https://%s\n", a.cfg.Site.Domain)
	a.printf("  root        : %s\n", a.paths.Root)
	a.printf("  files       : %d\n", files)
	if snapshot != nil {
		a.printf("  backup      : %s\n", snapshot.Path)
	}

	list, err := a.backups.List()
	if err == nil {
		var total int64
		for _, s := range list {
			if n, err := s.Size(); err == nil {
				total += n
			}
		}
		a.printf("  backups     : %d kept, %d removed, %s\n", len(list), removed, humanize.Bytes(uint64(total)))
	}
	a.printCommands()
	a.printWarnings(rs)
}

func (a *App) printCertificate(ctx context.Context) {
	info, err := a.CertInfo(ctx)
	switch {
	case err != nil:
		a.printf("  certificate : unknown (%v)\n", err)
	case !info.Exists:
		a.printf("  certificate : none\n")
	default:
		a.printf("  certificate : expires %s (%s, %d days left)\n",
			info.NotAfter.Format(time.RFC3339), humanize.Time(info.NotAfter), info.DaysLeft)
	}
}

func (a *App) printCommands() {
	a.printf("\nUseful commands:\n")
	a.printf("  status  : cd %s && docker compose ps\n", a.paths.Root)
	a.printf("  logs    : cd %s && docker compose logs -f\n", a.paths.Root)
	a.printf("  restart : cd %s && docker compose restart\n", a.paths.Root)
	a.printf("  update  : sitedeploy update\n")
}

// PrintReport writes the per-step outcome of a finished run.
func (a *App) PrintReport(rep *workflow.Report) {
	a.printf("\n%-4s  %-26s  %-8s  %-8s  %s\n", "SEQ", "STEP", "STATUS", "TIME", "MESSAGE")
	for _, s := range rep.Steps {
		a.printf("%-4d  %-26s  %-8s  %-8s  %s\n", s.Seq, s.Name, s.Status, s.Duration.Round(time.Millisecond), trimLen(s.Message, 80))
	}
}

var errNoJournal = errors.New("run journal disabled (storage.sqlite_path)")

func (a *App) History(limit int) error {
	if a.st == nil {
		return errNoJournal
	}
	runs, err := a.st.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		a.printf("No runs recorded.\n")
		return nil
	}
	a.printf("%-36s  %-9s  %-11s  %-20s  %-10s  %s\n", "ID", "KIND", "STATUS", "STARTED", "DURATION", "ERROR")
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		a.printf("%-36s  %-9s  %-11s  %-20s  %-10s  %s\n",
			r.ID, r.Kind, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04:05"), dur, trimLen(r.Error, 60))
	}
	return nil
}

func (a *App) HistoryShow(id string) error {
	if a.st == nil {
		return errNoJournal
	}
	r, err := a.st.GetRun(id)
	if err != nil {
		return err
	}
	a.printf("ID       : %s\n", r.ID)
	a.printf("Kind     : %s\n", r.Kind)
	a.printf("Domain   : %s\n", r.Domain)
	a.printf("Status   : %s\n", r.Status)
	a.printf("Started  : %s (%s)\n", r.StartedAt.Format(time.RFC3339), humanize.Time(r.StartedAt))
	if r.FinishedAt != nil {
		a.printf("Finished : %s\n", r.FinishedAt.Format(time.RFC3339))
	}
	if r.Error != "" {
		a.printf("Error    : %s\n", r.Error)
	}
	a.printf("\n%-4s  %-26s  %-8s  %-8s  %s\n", "SEQ", "STEP", "STATUS", "TIME", "MESSAGE")
	for _, s := range r.Steps {
		a.printf("%-4d  %-26s  %-8s  %-8s  %s\n", s.Seq, s.Name, s.Status, s.Duration, trimLen(s.Message, 80))
	}
	if len(r.Artifacts) > 0 {
		a.printf("\nFiles:\n")
		for _, f := range r.Artifacts {
			a.printf("  %-50s  %s  changed=%v\n", f.Path, shortHash(f.SHA256), f.Changed)
		}
	}
	return nil
}

func (a *App) Backups() error {
	list, err := a.backups.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No backups in %s.\n", a.paths.BackupDir)
		return nil
	}
	a.printf("%-28s  %-20s  %-14s  %s\n", "NAME", "CREATED", "AGE", "SIZE")
	for _, s := range list {
		size := "?"
		if n, err := s.Size(); err == nil {
			size = humanize.Bytes(uint64(n))
		}
		a.printf("%-28s  %-20s  %-14s  %s\n", s.Name, s.Created.Format("2006-01-02 15:04:05"), humanize.Time(s.Created), size)
	}
	return nil
}

// Render prints the generated files, or writes them under outDir using
// the install layout. It never touches the host.
func (a *App) Render(outDir string, tls bool) error {
	b, err := stack.Render(stack.ParamsFromConfig(a.cfg, tls))
	if err != nil {
		return err
	}
	files := []struct {
		path string
		data []byte
	}{
		{a.paths.ComposeFile, b.Compose},
		{a.paths.Dockerfile, b.Dockerfile},
		{a.paths.NginxConf, b.NginxConf},
		{a.paths.RenewScript, b.RenewScript},
	}

	for _, f := range files {
		rel, err := filepath.Rel(a.paths.Root, f.path)
		if err != nil {
			return err
		}
		if outDir == "" {
			a.printf("# ---- %s ----\n%s\n", rel, f.data)
			continue
		}
		dst := filepath.Join(outDir, rel)
		perm := os.FileMode(0o644)
		if f.path == a.paths.RenewScript {
			perm = 0o755
		}
		changed, err := atomic.WriteFileIfChanged(dst, f.data, perm)
		if err != nil {
			return err
		}
		a.printf("%-50s  changed=%v\n", dst, changed)
	}
	return nil
}

func trimLen(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
