package bootstrap

import (
	"fmt"
	"strings"

	"casehub/core"
)

// Remediation turns a DOWN report into operator guidance. It returns an
// empty string for UP reports.
func Remediation(report core.ServiceStatusReport) string {
	if report.IsUp() {
		return ""
	}

	msg := strings.ToLower(report.Message)
	name := strings.ToLower(report.Service.DisplayName())
	section := configSection(report.Service)

	switch {
	case strings.Contains(msg, "refused"):
		return fmt.Sprintf("Connection refused by the %s.\n"+
			"  This usually means the service is not running.\n"+
			"  Remediation:\n"+
			"  - Start the service and check its logs\n"+
			"  - Verify %s.host and %s.port in casehub.yaml", name, section, section)

	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return fmt.Sprintf("Connection to the %s timed out.\n"+
			"  Possible causes:\n"+
			"  - The service is starting up (wait and retry)\n"+
			"  - A firewall is dropping the connection\n"+
			"  - The service is overloaded", name)

	case strings.Contains(msg, "no such host") || strings.Contains(msg, "lookup"):
		return fmt.Sprintf("Cannot resolve the %s host.\n"+
			"  Remediation:\n"+
			"  - Verify %s.host is spelled correctly\n"+
			"  - Check DNS configuration or use an IP address", name, section)

	case strings.Contains(msg, "auth") || strings.Contains(msg, "password") || strings.Contains(msg, "denied") || strings.Contains(msg, "wrongpass"):
		return fmt.Sprintf("Authentication failed for the %s.\n"+
			"  Remediation:\n"+
			"  - Verify the credentials in %s\n"+
			"  - Check the secrets provider holds %s_password", name, section, section)
	}

	return fmt.Sprintf("%s is unavailable: %s\n"+
		"  Remediation:\n"+
		"  - Ensure the service is running and reachable\n"+
		"  - Check the %s section of casehub.yaml", report.Service.DisplayName(), report.Message, section)
}

func configSection(id core.ServiceID) string {
	switch id {
	case core.ServiceCaseDatabase:
		return "database"
	case core.ServiceKeywordSearch:
		return "index_server"
	case core.ServiceMessaging:
		return "messaging"
	case core.ServiceCoordination:
		return "coordination"
	}
	return strings.ToLower(id.String())
}
