// Package remediation executes the concrete IT actions a remediation
// plan calls for. Every tool is a mocked integration: it validates its
// parameters, logs the action, and returns a canned result, standing in
// for the directory, deployment, and device-management systems.
package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ActionResult is the outcome of one tool execution.
type ActionResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Output  map[string]string `json:"output,omitempty"`
}

// approvedSoftware is the installation allow-list; anything else is
// rejected without escalation to the deployment service.
var approvedSoftware = map[string]bool{
	"office365": true,
	"zoom":      true,
	"slack":     true,
	"chrome":    true,
	"vscode":    true,
}

// Engine dispatches remediation tools by name.
type Engine struct {
	tools map[string]func(ctx context.Context, params map[string]string) (*ActionResult, error)
}

// NewEngine creates an engine with the full tool set registered.
func NewEngine() *Engine {
	e := &Engine{}
	e.tools = map[string]func(context.Context, map[string]string) (*ActionResult, error){
		"reset_password":        e.resetPassword,
		"unlock_account":        e.unlockAccount,
		"enable_mfa":            e.enableMFA,
		"push_vpn_config":       e.pushVPNConfig,
		"reset_network_adapter": e.resetNetworkAdapter,
		"install_software":      e.installSoftware,
		"repair_application":    e.repairApplication,
		"run_diagnostic":        e.runDiagnostic,
		"check_service_status":  e.checkServiceStatus,
		"send_user_notification": e.sendUserNotification,
		"update_ticket":          e.updateTicket,
	}
	return e
}

// Tools lists the registered tool names.
func (e *Engine) Tools() []string {
	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	return names
}

// Execute runs one tool by name. Unknown tools are an error; a tool that
// runs but does not achieve its goal returns Success=false instead.
func (e *Engine) Execute(ctx context.Context, tool string, params map[string]string) (*ActionResult, error) {
	fn, ok := e.tools[tool]
	if !ok {
		return nil, fmt.Errorf("unknown remediation tool %q", tool)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := fn(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool, err)
	}
	slog.Info("remediation action executed", "tool", tool, "success", result.Success)
	return result, nil
}

func (e *Engine) resetPassword(_ context.Context, params map[string]string) (*ActionResult, error) {
	target := firstOf(params, "user_email", "user_id")
	if target == "" {
		return nil, fmt.Errorf("user_email or user_id is required")
	}
	slog.Info("password reset", "target", target)
	return &ActionResult{
		Success: true,
		Message: "Password reset successful",
		Output: map[string]string{
			"must_change_on_login": "true",
		},
	}, nil
}

func (e *Engine) unlockAccount(_ context.Context, params map[string]string) (*ActionResult, error) {
	target := firstOf(params, "user_email", "user_id")
	if target == "" {
		return nil, fmt.Errorf("user_email or user_id is required")
	}
	slog.Info("account unlock", "target", target)
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("Account %s unlocked", target),
		Output:  map[string]string{"account_status": "active"},
	}, nil
}

func (e *Engine) enableMFA(_ context.Context, params map[string]string) (*ActionResult, error) {
	user := params["user_email"]
	if user == "" {
		return nil, fmt.Errorf("user_email is required")
	}
	method := params["method"]
	if method == "" {
		method = "authenticator"
	}
	slog.Info("mfa enabled", "user", user, "method", method)
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("MFA (%s) enabled", method),
		Output:  map[string]string{"method": method},
	}, nil
}

func (e *Engine) pushVPNConfig(_ context.Context, params map[string]string) (*ActionResult, error) {
	target := firstOf(params, "device_id", "user_email")
	if target == "" {
		return nil, fmt.Errorf("device_id or user_email is required")
	}
	slog.Info("vpn config push", "target", target)
	return &ActionResult{
		Success: true,
		Message: "VPN configuration pushed",
		Output:  map[string]string{"deployment_status": "pending"},
	}, nil
}

func (e *Engine) resetNetworkAdapter(_ context.Context, params map[string]string) (*ActionResult, error) {
	device := params["device_id"]
	if device == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	slog.Info("network adapter reset", "device", device)
	return &ActionResult{
		Success: true,
		Message: "Network adapter reset command sent",
		Output:  map[string]string{"device_id": device},
	}, nil
}

func (e *Engine) installSoftware(_ context.Context, params map[string]string) (*ActionResult, error) {
	software := params["software_id"]
	if software == "" {
		return nil, fmt.Errorf("software_id is required")
	}
	if !approvedSoftware[strings.ToLower(software)] {
		return &ActionResult{
			Success: false,
			Message: fmt.Sprintf("Software %q is not on the approved list", software),
		}, nil
	}
	slog.Info("software install queued", "software", software)
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("Installation of %s queued", software),
		Output:  map[string]string{"status": "installation_queued"},
	}, nil
}

func (e *Engine) repairApplication(_ context.Context, params map[string]string) (*ActionResult, error) {
	app := params["app_name"]
	if app == "" {
		return nil, fmt.Errorf("app_name is required")
	}
	slog.Info("application repair", "app", app, "device", params["device_id"])
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("Repair for %s initiated", app),
	}, nil
}

func (e *Engine) runDiagnostic(_ context.Context, params map[string]string) (*ActionResult, error) {
	kind := params["type"]
	if kind == "" {
		kind = "general"
	}
	slog.Info("diagnostic run", "device", params["device_id"], "type", kind)
	return &ActionResult{
		Success: true,
		Message: "Diagnostic completed",
		Output: map[string]string{
			"cpu_usage":      "35%",
			"memory_usage":   "62%",
			"disk_free":      "45GB",
			"network_status": "connected",
		},
	}, nil
}

func (e *Engine) checkServiceStatus(_ context.Context, params map[string]string) (*ActionResult, error) {
	service := params["service"]
	if service == "" {
		return nil, fmt.Errorf("service is required")
	}
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("Service %s operational", service),
		Output:  map[string]string{"service": service, "status": "operational"},
	}, nil
}

func (e *Engine) sendUserNotification(_ context.Context, params map[string]string) (*ActionResult, error) {
	user := params["user_email"]
	if user == "" {
		return nil, fmt.Errorf("user_email is required")
	}
	slog.Info("notification sent", "user", user)
	return &ActionResult{
		Success: true,
		Message: "Notification sent",
		Output:  map[string]string{"channel": "email"},
	}, nil
}

func (e *Engine) updateTicket(_ context.Context, params map[string]string) (*ActionResult, error) {
	ticketID := params["ticket_id"]
	if ticketID == "" {
		return nil, fmt.Errorf("ticket_id is required")
	}
	slog.Info("ticket updated", "ticket_id", ticketID)
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("Ticket %s updated", ticketID),
	}, nil
}

func firstOf(params map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := params[k]; v != "" {
			return v
		}
	}
	return ""
}
