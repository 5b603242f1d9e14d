package cmd

import (
	"fmt"
	"io"
	"strings"

	"casehub/bootstrap"
	"casehub/core"
)

// renderStatusTable displays service reports in a formatted table
func renderStatusTable(w io.Writer, reports []core.ServiceStatusReport) {
	if len(reports) == 0 {
		warningColor.Fprintln(w, "No services configured")
		return
	}

	headerColor.Fprintln(w, "MULTI-USER SERVICES")
	headerColor.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintf(w, "%-24s %-36s %-8s %s\n", "ID", "Service", "Status", "Checked")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range reports {
		checked := "-"
		if !r.CheckedAt.IsZero() {
			checked = r.CheckedAt.Local().Format("15:04:05")
		}
		fmt.Fprintf(w, "%-24s %-36s %s %s\n",
			r.Service, r.Service.DisplayName(), padStatus(r.Status), checked)
		if !r.IsUp() && r.Message != "" {
			fmt.Fprintf(w, "%-24s %s\n", "", truncate(r.Message, 75))
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 100))
}

// renderReport prints a one-line summary of a report
func renderReport(w io.Writer, r core.ServiceStatusReport) {
	if r.IsUp() {
		successColor.Fprint(w, "  ✓ ")
		fmt.Fprintf(w, "%s\n", r.Service.DisplayName())
		return
	}
	errorColor.Fprint(w, "  ✗ ")
	fmt.Fprintf(w, "%s: %s\n", r.Service.DisplayName(), r.Message)
}

func renderRemediation(w io.Writer, reports []core.ServiceStatusReport) {
	for _, r := range reports {
		if hint := bootstrap.Remediation(r); hint != "" {
			fmt.Fprintln(w)
			warningColor.Fprintln(w, hint)
		}
	}
}

// padStatus colors a status after padding it, so the table stays aligned
func padStatus(status core.ServiceStatus) string {
	padded := fmt.Sprintf("%-8s", status)
	if status == core.ServiceStatusUp {
		return successColor.Sprint(padded)
	}
	return errorColor.Sprint(padded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
