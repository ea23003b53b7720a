package main

import (
	"github.com/fwojciec/cratedoc/mcp"
)

// Run executes the serve command. It blocks until the client disconnects
// or the context is canceled.
func (c *ServeCmd) Run(deps *Dependencies) error {
	server, err := mcp.NewServer(deps.Service, version)
	if err != nil {
		return deps.fail(err)
	}
	if c.HTTP != "" {
		deps.Logger.Info("serving", "transport", "http", "addr", c.HTTP)
		return server.RunHTTP(deps.Ctx, c.HTTP)
	}
	deps.Logger.Info("serving", "transport", "stdio")
	return server.Run(deps.Ctx)
}
