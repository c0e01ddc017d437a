package server

import (
	"github.com/eternalApril/moonbeam/internal/config"
	"github.com/eternalApril/moonbeam/internal/resp"
	"github.com/eternalApril/moonbeam/internal/storage"
)

// context carries everything a single command execution may touch.
// Handlers validate arity and option syntax before the first store access,
// so a rejected command never mutates state.
type context struct {
	args    []resp.Value
	storage storage.Storage
	cfg     *config.Config
}

type command interface {
	execute(ctx *context) resp.Value
}

type commandFunc func(ctx *context) resp.Value

func (c commandFunc) execute(ctx *context) resp.Value {
	return c(ctx)
}
