package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/replitone/replitone/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK        bool     `json:"ok"`
		Responder string   `json:"responder"`
		Issues    []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.Responder {
	case config.ResponderCanned, config.ResponderHTTP, config.ResponderGemini:
	default:
		issues = append(issues, "invalid responder")
	}
	if h.Config.WSMaxMessageBytes <= 0 {
		issues = append(issues, "ws max message bytes must be > 0")
	}
	if h.Config.WSPingInterval <= 0 || h.Config.WSWriteTimeout <= 0 {
		issues = append(issues, "ws intervals must be > 0")
	}
	if h.Config.SynthSampleRate <= 0 {
		issues = append(issues, "synth sample rate must be > 0")
	}
	if h.Config.CloneDelay < 0 {
		issues = append(issues, "clone delay must be >= 0")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:        ok,
		Responder: string(h.Config.Responder),
		Issues:    issues,
	})
}
