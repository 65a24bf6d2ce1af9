package config

// DefaultSensitiveDomains returns domains whose time is never recorded when
// tracking.exclude_sensitive is enabled: banking, password managers,
// identity providers and healthcare portals. Subdomains match too.
func DefaultSensitiveDomains() []string {
	return []string{
		// Banking & Financial
		"chase.com",
		"bankofamerica.com",
		"wellsfargo.com",
		"citi.com",
		"capitalone.com",
		"schwab.com",
		"fidelity.com",
		"vanguard.com",
		"paypal.com",

		// Password Managers
		"1password.com",
		"lastpass.com",
		"bitwarden.com",
		"dashlane.com",

		// Authentication & Identity
		"accounts.google.com",
		"login.microsoftonline.com",
		"okta.com",
		"login.gov",
		"id.me",

		// Healthcare & Medical
		"mychart.com",
		"kp.org",
		"healthcare.gov",
		"medicare.gov",
	}
}
