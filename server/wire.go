//go:build wireinject
// +build wireinject

package server

import (
	"context"

	"github.com/google/wire"
)

// BuildApp wires the server components using Google Wire. The returned
// cleanup drains pending writes and closes storage and sinks.
func BuildApp(ctx context.Context, path ConfigPath) (*App, func(), error) {
	wire.Build(
		providerSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
