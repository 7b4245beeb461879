package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/orchestrator"
	"github.com/hupe1980/chatmesh/participant"
)

// CallbackType defines the lifecycle points where callbacks are executed.
//
// Available callback types:
//   - BeforeTurn: after the request is validated, before anything is
//     persisted; an error aborts Invoke
//   - OnEvent: for every payload before it is delivered
//   - AfterTurn: once the turn reached a terminal state
//   - OnError: when a turn ends cancelled or failed
type CallbackType string

const (
	CallbackBeforeTurn CallbackType = "before_turn"
	CallbackOnEvent    CallbackType = "on_event"
	CallbackAfterTurn  CallbackType = "after_turn"
	CallbackOnError    CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect.
type CallbackContext struct {
	SessionID    string
	TurnID       string
	Mode         orchestrator.Mode
	Participants []string

	Event event.Payload      // Set for CallbackOnEvent
	State orchestrator.State // Set for CallbackAfterTurn and CallbackOnError
	Err   error              // Set for CallbackOnError
}

// Callback defines the interface for turn lifecycle hooks. Callbacks run
// synchronously on the turn's goroutines and should be fast.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(CallbackAfterTurn, func(ctx context.Context, c *CallbackContext) error {
//	    log.Printf("turn %s ended %s", c.TurnID, c.State)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback running fn at callbackType.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager stores callbacks by type. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty CallbackManager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds callback under its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs the callbacks of callbackType in registration order
// and stops at the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback logs every execution at info level.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a LoggingCallback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	args := []any{"callback", string(c.callbackType), "session_id", callbackCtx.SessionID, "turn_id", callbackCtx.TurnID, "mode", callbackCtx.Mode}
	if callbackCtx.Event != nil {
		args = append(args, "type", callbackCtx.Event.Type())
	}
	if callbackCtx.Err != nil {
		args = append(args, "state", callbackCtx.State.String(), "error", callbackCtx.Err)
	}
	c.logger.Info("turn callback", args...)
	return nil
}

// AllowListCallback rejects turns naming participants outside an allow list.
type AllowListCallback struct {
	allowed map[string]struct{}
}

// NewAllowListCallback allows the given participant tokens. Tokens are
// canonicalised, so "assistant::writer" and "writer" are the same entry.
func NewAllowListCallback(tokens ...string) (*AllowListCallback, error) {
	allowed := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		ref, err := participant.Parse(t)
		if err != nil {
			return nil, err
		}
		allowed[ref.Token()] = struct{}{}
	}
	return &AllowListCallback{allowed: allowed}, nil
}

// Type implements Callback.
func (c *AllowListCallback) Type() CallbackType {
	return CallbackBeforeTurn
}

// Execute implements Callback.
func (c *AllowListCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	for _, t := range callbackCtx.Participants {
		if _, ok := c.allowed[t]; !ok {
			return fmt.Errorf("participant %s is not allowed", t)
		}
	}
	return nil
}
