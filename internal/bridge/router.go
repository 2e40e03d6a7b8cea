// Package bridge is the local endpoint the browser page shim talks to. It
// carries page snapshots in over a WebSocket and answers the host channel
// requests the popup and page make.
package bridge

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/langs"
	"github.com/dgnsrekt/subvoice/internal/settings"
)

// Host channel actions.
const (
	ActionTranslate      = "translate"
	ActionSynthesize     = "synthesize"
	ActionCheckSubtitles = "checkSubtitles"
)

// Request is a host channel message.
type Request struct {
	ID         string `json:"id,omitempty"`
	Action     string `json:"action"`
	Text       string `json:"text,omitempty"`
	TargetLang string `json:"targetLang,omitempty"`
}

// Response answers a Request.
type Response struct {
	ID           string `json:"id,omitempty"`
	Success      bool   `json:"success"`
	Text         string `json:"text,omitempty"`
	AudioData    string `json:"audioData,omitempty"`
	HasSubtitles *bool  `json:"hasSubtitles,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Backend translates and synthesizes.
type Backend interface {
	Translate(ctx context.Context, text, lang string) (string, error)
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// Router dispatches host channel requests.
type Router struct {
	backend   Backend
	settings  *settings.Store
	subtitles func() bool
	logger    *log.Logger
}

// NewRouter creates a router. subtitles reports whether the active page has
// captions; nil means it never does.
func NewRouter(backend Backend, store *settings.Store, subtitles func() bool) *Router {
	if subtitles == nil {
		subtitles = func() bool { return false }
	}
	return &Router{
		backend:   backend,
		settings:  store,
		subtitles: subtitles,
		logger:    log.WithPrefix("bridge"),
	}
}

// Handle runs req. Failures are reported in the response, never as a Go
// error.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	resp, err := r.handle(ctx, req)
	if err != nil {
		r.logger.Warn("request failed", "action", req.Action, "error", err)
		resp = Response{Error: err.Error()}
	} else {
		resp.Success = true
	}
	resp.ID = req.ID
	return resp
}

func (r *Router) handle(ctx context.Context, req Request) (Response, error) {
	switch req.Action {
	case ActionTranslate:
		lang, err := r.language(req.TargetLang)
		if err != nil {
			return Response{}, err
		}
		text, err := r.backend.Translate(ctx, req.Text, lang)
		if err != nil {
			return Response{}, err
		}
		return Response{Text: text}, nil

	case ActionSynthesize:
		lang, err := r.language(req.TargetLang)
		if err != nil {
			return Response{}, err
		}
		audio, err := r.backend.Synthesize(ctx, req.Text, lang)
		if err != nil {
			return Response{}, err
		}
		return Response{AudioData: audio}, nil

	case ActionCheckSubtitles:
		has := r.subtitles()
		return Response{HasSubtitles: &has}, nil

	default:
		return Response{}, fmt.Errorf("unknown action %q", req.Action)
	}
}

func (r *Router) language(requested string) (string, error) {
	if requested == "" {
		if r.settings == nil {
			return settings.Defaults().TargetLanguage, nil
		}
		return r.settings.Config().TargetLanguage, nil
	}
	if err := langs.Valid(requested); err != nil {
		return "", err
	}
	return requested, nil
}
