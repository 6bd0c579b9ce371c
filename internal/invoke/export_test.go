package invoke

import (
	"context"

	"github.com/signalnine/effcurve/internal/docker"
)

func SetContainerRunner(c *ContainerInvoker, fn func(context.Context, *docker.RunOpts) (*docker.RunResult, error)) {
	c.run = fn
}
