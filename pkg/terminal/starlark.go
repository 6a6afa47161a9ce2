package terminal

import (
	"github.com/go-gouge/gouge/pkg/terminal/starbind"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
)

type starlarkContext struct {
	term *Term
}

var _ starbind.Context = starlarkContext{}

func (ctx starlarkContext) Client() service.Client {
	return ctx.term.client
}

func (ctx starlarkContext) RegisterCommand(name, helpMsg string, fn func(args string) error) {
	cmdfn := func(t *Term, ictx callContext, args string) error {
		return fn(args)
	}
	ctx.term.cmds.Register(name, cmdfn, helpMsg)
}

func (ctx starlarkContext) CallCommand(cmdstr string) error {
	return ctx.term.cmds.Call(cmdstr, ctx.term)
}

func (ctx starlarkContext) Scope() api.EvalScope {
	return api.EvalScope{GoroutineID: -1}
}

func (ctx starlarkContext) LoadConfig() api.LoadConfig {
	return ctx.term.loadConfig()
}
