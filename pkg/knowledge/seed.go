package knowledge

import "context"

// defaultRunbooks are the built-in articles indexed when no external
// knowledge base is configured.
var defaultRunbooks = []Document{
	{
		ID:       "kb-password-reset",
		Source:   "runbook/password-reset",
		Category: "access",
		Content: "Password reset procedure: verify the user's identity, reset the " +
			"password in the directory with a temporary value, require a change " +
			"on next login, and confirm the user can sign in.",
	},
	{
		ID:       "kb-account-unlock",
		Source:   "runbook/account-unlock",
		Category: "access",
		Content: "Locked account procedure: check the account status in the " +
			"directory, unlock if the lockout came from failed sign-in attempts, " +
			"and advise the user on the lockout threshold.",
	},
	{
		ID:       "kb-vpn-troubleshooting",
		Source:   "runbook/vpn-troubleshooting",
		Category: "network",
		Content: "VPN connectivity: confirm the VPN service is operational, push a " +
			"fresh VPN configuration to the device, and reset the network adapter " +
			"if the tunnel still fails to establish.",
	},
	{
		ID:       "kb-software-install",
		Source:   "runbook/software-install",
		Category: "software",
		Content: "Software installation: only approved software may be installed " +
			"through the deployment service. Queue the installation for the " +
			"user's device and notify them when it completes.",
	},
	{
		ID:       "kb-outlook-repair",
		Source:   "runbook/outlook-repair",
		Category: "email",
		Content: "Email client issues: run the application repair for the mail " +
			"client, verify the mailbox service status, and recreate the profile " +
			"if the repair does not help.",
	},
}

// SeedDefaults indexes the built-in runbook articles.
func (s *Store) SeedDefaults(ctx context.Context) error {
	return s.Add(ctx, defaultRunbooks...)
}
