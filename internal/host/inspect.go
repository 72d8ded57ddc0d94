package host

import (
	"context"
	"strings"

	"sitedeploy/internal/util/execx"
)

// SystemInfo holds the best-effort facts gathered by Inspect. Empty
// fields could not be determined.
type SystemInfo struct {
	OS     string
	Memory string
	Disk   string
}

// Inspect gathers OS, memory and disk usage. Lookup failures are
// returned as warnings and never abort.
func (h *Host) Inspect(ctx context.Context) (SystemInfo, []string) {
	var info SystemInfo
	var warnings []string

	probe := func(what string, c execx.Cmd, pick func(string) string) string {
		out, err := execx.Output(ctx, h.run, c)
		if err != nil {
			warnings = append(warnings, "could not determine "+what+": "+err.Error())
			return ""
		}
		v := pick(out)
		h.log.Info("system", what, v)
		return v
	}

	info.OS = probe("os", execx.Command("lsb_release", "-d"), func(s string) string {
		return strings.TrimSpace(strings.TrimPrefix(s, "Description:"))
	})
	info.Memory = probe("memory", execx.Command("free", "-h"), func(s string) string {
		return lineWithPrefix(s, "Mem:")
	})
	info.Disk = probe("disk", execx.Command("df", "-h", "/"), lastNonEmptyLine)

	return info, warnings
}

func lineWithPrefix(s, prefix string) string {
	for _, l := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), prefix) {
			return strings.Join(strings.Fields(l), " ")
		}
	}
	return ""
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.Join(strings.Fields(lines[len(lines)-1]), " ")
}
