package server

import (
	"net/http"
	"time"

	"github.com/onnwee/rolemaster-relay/telemetry"
)

// HandleStatus summarizes the relay for the control panel. Secrets are never included.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"channel":         h.opts.Channel,
		"uptime_seconds":  int(time.Since(h.started).Seconds()),
		"audit_enabled":   h.opts.Audit != nil,
		"tracing_enabled": telemetry.IsTracingEnabled(),
	}
	if h.opts.Session != nil {
		st, since := h.opts.Session.State()
		resp["session"] = map[string]any{"state": st.String(), "since": since.UTC().Format(time.RFC3339)}
	}
	if h.opts.Handler != nil {
		m := h.opts.Handler.Modes()
		resp["permissions"] = map[string]bool{"mods_only": m.ModsOnly, "subs_only": m.SubsOnly, "whitelist": m.Whitelist}
	}
	if h.opts.Lists != nil {
		wl, bl := h.opts.Lists.Sizes()
		resp["lists"] = map[string]int{"whitelist": wl, "blacklist": bl}
	}
	if c := h.opts.Catalog; c != nil {
		var enabled []string
		for _, s := range c.EnabledDefs() {
			enabled = append(enabled, c.UserName(s.Dev))
		}
		prefix, required := c.Prefix()
		resp["commands"] = map[string]any{"enabled": enabled, "prefix": prefix, "prefix_required": required, "help": c.HelpKeyword()}
	}
	writeJSON(w, http.StatusOK, resp)
}
