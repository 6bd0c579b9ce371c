package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// TimeoutExitCode is reported when the container is killed by Timeout.
const TimeoutExitCode = 124

type RunOpts struct {
	Image   string
	Command []string
	WorkDir string // bind-mounted at /workspace when set
	Env     map[string]string
	Timeout time.Duration // zero means wait indefinitely
	UserID  string
}

type RunResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
}

// RunContainer runs one command to completion in a fresh container and
// returns its demultiplexed output. The container is always removed.
func RunContainer(ctx context.Context, opts *RunOpts) (*RunResult, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	envSlice := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	hostCfg := &container.HostConfig{}
	containerCfg := &container.Config{
		Image:  opts.Image,
		Cmd:    opts.Command,
		Env:    envSlice,
		Labels: map[string]string{"effcurve": "true"},
	}
	if opts.WorkDir != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: opts.WorkDir,
			Target: "/workspace",
		}}
		containerCfg.WorkingDir = "/workspace"
	}
	if opts.UserID != "" {
		containerCfg.User = opts.UserID
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	waitResult := cli.ContainerWait(waitCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	errCh := waitResult.Error
	for {
		select {
		case err := <-errCh:
			if err == nil {
				// closed without error; the result channel decides
				errCh = nil
				continue
			}
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			if err := waitFailure(ctx, waitCtx, err); err != nil {
				return nil, err
			}
			stdout, stderr := collectLogs(cli, containerID)
			return &RunResult{
				ExitCode: TimeoutExitCode,
				TimedOut: true,
				Duration: time.Since(start),
				Stdout:   stdout,
				Stderr:   stderr,
			}, nil
		case status := <-waitResult.Result:
			stdout, stderr := collectLogs(cli, containerID)
			return &RunResult{
				ExitCode: int(status.StatusCode),
				Duration: time.Since(start),
				Stdout:   stdout,
				Stderr:   stderr,
			}, nil
		}
	}
}

// waitFailure classifies an error from ContainerWait. It returns nil only
// when the run timeout expired; parent cancellation and daemon errors are
// returned as is.
func waitFailure(ctx, waitCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		return nil
	}
	return fmt.Errorf("waiting for container: %w", err)
}

func collectLogs(cli *client.Client, containerID string) ([]byte, []byte) {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil || logReader == nil {
		return nil, nil
	}
	defer logReader.Close()
	var stdout, stderr bytes.Buffer
	stdcopy.StdCopy(&stdout, &stderr, logReader)
	return stdout.Bytes(), stderr.Bytes()
}

// CheckImage verifies that the daemon is reachable and can create a
// container from image. Nothing is started.
func CheckImage(ctx context.Context, image string) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:  image,
			Cmd:    []string{"true"},
			Labels: map[string]string{"effcurve": "true"},
		},
		HostConfig: &container.HostConfig{},
	})
	if err != nil {
		return fmt.Errorf("creating container from %s: %w", image, err)
	}
	cli.ContainerRemove(context.Background(), createResp.ID, client.ContainerRemoveOptions{Force: true})
	return nil
}
