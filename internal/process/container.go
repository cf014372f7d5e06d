// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/wingedpig/relief/internal/config"
)

// ContainerRunner runs projects that declare an image as Docker containers.
type ContainerRunner struct {
	once    sync.Once
	docker  *client.Client
	initErr error
}

// NewContainerRunner creates a runner. The Docker client connects lazily,
// so a host without Docker only fails when a container project starts.
func NewContainerRunner() *ContainerRunner {
	return &ContainerRunner{}
}

func (r *ContainerRunner) client() (*client.Client, error) {
	r.once.Do(func() {
		r.docker, r.initErr = client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if r.initErr != nil {
			r.initErr = fmt.Errorf("create docker client: %w", r.initErr)
		}
	})
	return r.docker, r.initErr
}

// ContainerName returns the container name used for a project.
func ContainerName(project string) string {
	return "relief-" + config.Slugify(project)
}

// Start creates and starts a container for spec.Image, replacing any
// leftover container with the same name.
func (r *ContainerRunner) Start(ctx context.Context, spec Spec) (Handle, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("%s: no image configured", spec.Name)
	}
	cli, err := r.client()
	if err != nil {
		return nil, err
	}

	name := ContainerName(spec.Name)
	if err := cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("remove stale container: %w", err)
	}

	if err := r.ensureImage(ctx, cli, spec); err != nil {
		return nil, err
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          containerEnv(spec),
		ExposedPorts: nat.PortSet{},
		Labels:       map[string]string{"dev.relief.project": spec.Name},
	}
	if spec.Command != "" {
		cfg.Cmd = []string{"/bin/sh", "-c", spec.Command}
	}
	hostCfg := &container.HostConfig{}
	if spec.Port > 0 {
		port := nat.Port(fmt.Sprintf("%d/tcp", spec.Port))
		cfg.ExposedPorts[port] = struct{}{}
		hostCfg.PortBindings = nat.PortMap{
			port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(spec.Port)}},
		}
	}
	if spec.Dir != "" {
		hostCfg.Binds = []string{spec.Dir + ":/app"}
		cfg.WorkingDir = "/app"
	}

	spec.emit(fmt.Sprintf("[relief] Starting container %s from %s", name, spec.Image))

	resp, err := cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("container create: %w", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("container start: %w", err)
	}

	c := &containerProcess{
		cli:      cli,
		id:       resp.ID,
		spec:     spec,
		waitDone: make(chan struct{}),
	}
	if inspect, err := cli.ContainerInspect(ctx, resp.ID); err == nil && inspect.ContainerJSONBase != nil && inspect.State != nil {
		c.pid = inspect.State.Pid
	}

	c.logsDone.Add(1)
	go c.followLogs()
	go c.waitForExit()
	return c, nil
}

func (r *ContainerRunner) ensureImage(ctx context.Context, cli *client.Client, spec Spec) error {
	if _, _, err := cli.ImageInspectWithRaw(ctx, spec.Image); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}

	spec.emit(fmt.Sprintf("[relief] Pulling image %s", spec.Image))
	rc, err := cli.ImagePull(ctx, spec.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", spec.Image, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image %s: %w", spec.Image, err)
	}
	return nil
}

func containerEnv(spec Spec) []string {
	vars := make(map[string]string, len(spec.Env)+1)
	for k, v := range spec.Env {
		vars[k] = v
	}
	if spec.Port > 0 {
		vars["PORT"] = strconv.Itoa(spec.Port)
	}
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

type containerProcess struct {
	cli  *client.Client
	id   string
	pid  int
	spec Spec

	logsDone sync.WaitGroup

	mu            sync.Mutex
	stopRequested bool
	exitErr       error
	waitDone      chan struct{}
}

func (c *containerProcess) followLogs() {
	defer c.logsDone.Done()

	rc, err := c.cli.ContainerLogs(context.Background(), c.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		c.spec.emit(fmt.Sprintf("[relief] Cannot follow container logs: %v", err))
		return
	}
	defer rc.Close()

	pr, pw := io.Pipe()
	go func() {
		// Non-TTY containers multiplex stdout and stderr on one stream.
		_, err := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(err)
	}()

	captureOutput(pr, &c.spec)
}

func (c *containerProcess) waitForExit() {
	statusCh, errCh := c.cli.ContainerWait(context.Background(), c.id, container.WaitConditionNotRunning)

	var exitErr error
	select {
	case status := <-statusCh:
		if status.Error != nil {
			exitErr = fmt.Errorf("container wait: %s", status.Error.Message)
		} else if status.StatusCode != 0 {
			exitErr = &ExitError{Code: int(status.StatusCode)}
		}
	case err := <-errCh:
		if err != nil && !client.IsErrNotFound(err) {
			exitErr = fmt.Errorf("container wait: %w", err)
		}
	}

	drained := make(chan struct{})
	go func() {
		c.logsDone.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
	}

	if err := c.cli.ContainerRemove(context.Background(), c.id, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		log.Printf("Container %s: remove failed: %v", c.id[:12], err)
	}

	c.mu.Lock()
	stopRequested := c.stopRequested
	c.exitErr = exitErr
	c.mu.Unlock()

	if exitErr != nil && !stopRequested {
		c.spec.emit(fmt.Sprintf("[relief] Container exited with error: %v", exitErr))
	} else {
		c.spec.emit("[relief] Container stopped")
	}
	close(c.waitDone)
}

func (c *containerProcess) PID() int {
	return c.pid
}

func (c *containerProcess) Done() <-chan struct{} {
	return c.waitDone
}

func (c *containerProcess) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}

func (c *containerProcess) StopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

// Stop asks Docker to stop the container; Docker sends SIGTERM, then
// SIGKILL after timeout.
func (c *containerProcess) Stop(ctx context.Context, timeout time.Duration) error {
	select {
	case <-c.waitDone:
		return nil
	default:
	}

	c.mu.Lock()
	c.stopRequested = true
	c.mu.Unlock()

	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	if err := c.cli.ContainerStop(ctx, c.id, container.StopOptions{Timeout: &secs}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container stop: %w", err)
	}

	select {
	case <-c.waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
