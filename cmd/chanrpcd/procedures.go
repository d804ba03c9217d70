package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/chanrpc/internal/auth"
	"github.com/danmuck/chanrpc/internal/config"
	"github.com/danmuck/chanrpc/internal/rpc"
	"github.com/danmuck/chanrpc/internal/session"
)

type procedure struct {
	iface   string
	version int
	method  string
	handler rpc.Handler
	opts    []rpc.MethodOption
}

func public() rpc.MethodOption { return rpc.WithAccess(rpc.AccessPublic) }

// registerProcedures installs the built-in interfaces. Every procedure
// gets its own admission gate built from the shared gate settings.
func registerProcedures(r *rpc.Registry, gate config.GateConfig, validator auth.Validator) error {
	procs := []procedure{
		{"system", 1, "ping", ping, []rpc.MethodOption{public()}},
		{"system", 1, "interfaces", listInterfaces(r), []rpc.MethodOption{public()}},
		{"auth", 1, "signIn", signIn(validator), []rpc.MethodOption{public()}},
		{"auth", 1, "signOut", signOut, nil},
		{"auth", 1, "whoami", whoami, nil},
		{"echo", 1, "say", echoV1, []rpc.MethodOption{public()}},
		{"echo", 2, "say", echoV2, []rpc.MethodOption{public(), rpc.WithTimeout(5 * time.Second)}},
		{"files", 1, "upload", upload, []rpc.MethodOption{rpc.WithTimeout(time.Minute)}},
		{"files", 1, "download", download, nil},
	}
	for _, p := range procs {
		opts := append([]rpc.MethodOption{rpc.WithGate(rpc.NewGate(gate.RPC()))}, p.opts...)
		if err := r.Register(p.iface, p.version, p.method, rpc.NewMethod(p.handler, opts...)); err != nil {
			return err
		}
	}
	return nil
}

func ping(context.Context, *rpc.Context, json.RawMessage) (any, error) {
	return "pong", nil
}

func listInterfaces(r *rpc.Registry) rpc.Handler {
	return func(context.Context, *rpc.Context, json.RawMessage) (any, error) {
		return r.Interfaces(), nil
	}
}

type signInArgs struct {
	Account string `json:"account"`
	Secret  string `json:"secret"`
}

func signIn(validator auth.Validator) rpc.Handler {
	return func(ctx context.Context, c *rpc.Context, args json.RawMessage) (any, error) {
		var in signInArgs
		if err := json.Unmarshal(args, &in); err != nil || strings.TrimSpace(in.Account) == "" {
			return rpc.NewError("account is required", 400), nil
		}
		if err := validator.Validate(in.Account, in.Secret); err != nil {
			return rpc.NewError("invalid credentials", 401), nil
		}
		token := session.NewToken()
		if !c.Client.StartSession(ctx, token, session.State{session.AccountKey: in.Account}) {
			return nil, rpc.NewError("session could not be started", 500)
		}
		return map[string]string{"token": token}, nil
	}
}

func signOut(ctx context.Context, c *rpc.Context, _ json.RawMessage) (any, error) {
	return c.Client.FinalizeSession(ctx, c.Session.Token), nil
}

func whoami(_ context.Context, c *rpc.Context, _ json.RawMessage) (any, error) {
	return map[string]any{
		"account":     c.AccountID,
		"correlation": c.CorrelationID,
		"remote":      c.Client.RemoteAddr(),
	}, nil
}

func echoV1(_ context.Context, _ *rpc.Context, args json.RawMessage) (any, error) {
	return args, nil
}

func echoV2(_ context.Context, c *rpc.Context, args json.RawMessage) (any, error) {
	return map[string]any{
		"echo":        args,
		"correlation": c.CorrelationID,
	}, nil
}

type uploadArgs struct {
	Stream int64 `json:"stream"`
}

// upload drains an inbound stream the peer opened and reports its size.
func upload(_ context.Context, c *rpc.Context, args json.RawMessage) (any, error) {
	var in uploadArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return rpc.NewError("stream id is required", 400), nil
	}
	r, ok := c.Client.GetStream(in.Stream)
	if !ok {
		return rpc.NewError("stream is not initialized", 404), nil
	}
	data, err := r.ReadAll()
	if err != nil {
		return rpc.NewError(fmt.Sprintf("stream aborted after %d of %d bytes", r.Received(), r.Size()), 410), nil
	}
	return map[string]any{"name": r.Name(), "size": len(data)}, nil
}

type downloadArgs struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// download sends content back over an outbound stream written in the
// background. The answer names the stream id.
func download(ctx context.Context, c *rpc.Context, args json.RawMessage) (any, error) {
	var in downloadArgs
	if err := json.Unmarshal(args, &in); err != nil || in.Name == "" || in.Content == "" {
		return rpc.NewError("name and content are required", 400), nil
	}
	w, err := c.Client.CreateStream(ctx, in.Name, int64(len(in.Content)))
	if err != nil {
		return nil, err
	}
	go func() {
		if _, err := w.Write([]byte(in.Content)); err != nil {
			_ = w.Terminate()
			return
		}
		_ = w.Close()
	}()
	return map[string]int64{"stream": w.ID}, nil
}
