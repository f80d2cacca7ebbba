// File: internal/control/control.go

// Package control exposes the inbound command surface: a websocket endpoint
// accepting detect, actuate and configure commands from an external
// collaborator. Every command yields a structured response on the same
// connection; a missing banner is a reportable failure, never a dropped
// connection.
package control

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/xkilldash9x/consentry/internal/actuate"
	"github.com/xkilldash9x/consentry/internal/detect"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

// Command is one inbound request.
type Command struct {
	ID       string        `json:"id,omitempty"`
	Action   string        `json:"action"`
	Polarity string        `json:"polarity,omitempty"`
	Config   *ConfigChange `json:"config,omitempty"`
}

// ConfigChange carries the runtime-adjustable settings. Nil fields leave the
// current value untouched.
type ConfigChange struct {
	Mode   *string       `json:"mode,omitempty"`
	Debug  *bool         `json:"debug,omitempty"`
	Policy *PolicyChange `json:"policy,omitempty"`
}

// PolicyChange replaces the per-domain allow/deny lists.
type PolicyChange struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// Response answers one command.
type Response struct {
	ID     string      `json:"id"`
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// ActuationReport is the result payload of a successful actuate command.
type ActuationReport struct {
	Polarity string `json:"polarity"`
	Fallback bool   `json:"fallback"`
}

// Agent is the running session the surface drives.
type Agent interface {
	Detect(ctx context.Context) (*detect.Result, error)
	Actuate(ctx context.Context, polarity patterns.Polarity) (*actuate.Outcome, error)
	Configure(ctx context.Context, change ConfigChange) error
}

// dispatch executes one parsed command. It never returns an error; every
// outcome, expected or not, becomes a response.
func dispatch(ctx context.Context, agent Agent, cmd Command) Response {
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}
	resp := Response{ID: cmd.ID}

	switch cmd.Action {
	case "detect":
		res, err := agent.Detect(ctx)
		switch {
		case errors.Is(err, detect.ErrBusy):
			resp.Error = "detector busy"
		case err != nil:
			resp.Error = err.Error()
		case res == nil:
			resp.Error = "no banner detected"
		default:
			resp.OK = true
			resp.Result = res
		}

	case "actuate":
		polarity, ok := parsePolarity(cmd.Polarity)
		if !ok {
			resp.Error = "polarity must be accept or reject"
			break
		}
		outcome, err := agent.Actuate(ctx, polarity)
		switch {
		case errors.Is(err, actuate.ErrNoBanner):
			resp.Error = "no banner detected"
		case errors.Is(err, actuate.ErrNoControl):
			resp.Error = "no control found for requested polarity"
		case errors.Is(err, detect.ErrBusy):
			resp.Error = "detector busy"
		case err != nil:
			resp.Error = err.Error()
		default:
			resp.OK = true
			resp.Result = ActuationReport{
				Polarity: string(outcome.Polarity),
				Fallback: outcome.Fallback,
			}
		}

	case "configure":
		if cmd.Config == nil {
			resp.Error = "configure command carries no config"
			break
		}
		if err := agent.Configure(ctx, *cmd.Config); err != nil {
			resp.Error = err.Error()
		} else {
			resp.OK = true
		}

	default:
		resp.Error = "unknown action"
	}
	return resp
}

// parsePolarity accepts the wire spellings, including "deny" as an alias for
// reject.
func parsePolarity(raw string) (patterns.Polarity, bool) {
	switch raw {
	case "accept":
		return patterns.PolarityAccept, true
	case "reject", "deny":
		return patterns.PolarityReject, true
	default:
		return "", false
	}
}
