package analytics

import (
	"context"

	"just3sec/core"
)

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// Handle adapts the bridge to the event bus handler signature.
func (b *BridgeHook) Handle(_ context.Context, e core.Event) { b.OnEvent(e) }
