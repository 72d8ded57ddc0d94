package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

const composeProjectLabel = "com.docker.compose.project"

// api is the slice of the Docker SDK this package uses.
type api interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	Close() error
}

// Client wraps the Docker SDK client.
type Client struct {
	inner api
}

// New creates a new Docker client using environment defaults.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{inner: inner}, nil
}

// Ping validates connectivity to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return fmt.Errorf("docker client not initialized")
	}
	ping, err := c.inner.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("docker ping returned empty API version")
	}
	return nil
}

// ContainerStatus is one container of the compose project.
type ContainerStatus struct {
	Name    string
	Service string
	Image   string
	State   string // running, exited, ...
	Status  string // human readable, e.g. "Up 3 hours (healthy)"
}

func (s ContainerStatus) Running() bool {
	return s.State == "running"
}

// ProjectContainers lists all containers, running or not, that compose
// created for project, sorted by name.
func (c *Client) ProjectContainers(ctx context.Context, project string) ([]ContainerStatus, error) {
	if c == nil || c.inner == nil {
		return nil, fmt.Errorf("docker client not initialized")
	}
	list, err := c.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+project)),
	})
	if err != nil {
		return nil, fmt.Errorf("docker container list: %w", err)
	}

	out := make([]ContainerStatus, 0, len(list))
	for _, ct := range list {
		name := ct.ID
		if len(ct.Names) > 0 {
			name = strings.TrimPrefix(ct.Names[0], "/")
		}
		out = append(out, ContainerStatus{
			Name:    name,
			Service: ct.Labels["com.docker.compose.service"],
			Image:   ct.Image,
			State:   ct.State,
			Status:  ct.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close releases resources held by the Docker client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
