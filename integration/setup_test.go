package mqrecv_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedServer  string
	sharedCleanup func()

	cleanupMu         sync.Mutex
	containerCleanups []func()
)

func TestMain(m *testing.M) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nReceived interrupt signal, cleaning up containers...")
		cleanupMu.Lock()
		for _, cleanup := range containerCleanups {
			cleanup()
		}
		cleanupMu.Unlock()
		os.Exit(1)
	}()

	var err error
	sharedServer, sharedCleanup, err = startContainer("")
	if err != nil {
		fmt.Printf("Failed to start shared container: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	cleanupMu.Lock()
	for _, cleanup := range containerCleanups {
		cleanup()
	}
	cleanupMu.Unlock()

	os.Exit(code)
}

// getFreePort returns a free TCP port by opening a listener on :0 and closing it.
func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// startContainer starts a Mosquitto broker container. If configContent is
// empty, a minimal anonymous-access config is used. The handler this module
// implements only ever sits downstream of PUBLISH/PUBREL traffic, so a
// single real broker image is enough to exercise it end to end — unlike
// the teacher's client, this package has no need for a multi-broker
// compatibility matrix.
func startContainer(configContent string, fixedPort ...string) (string, func(), error) {
	ctx := context.Background()

	serverImage := os.Getenv("MQTT_SERVER_IMAGE")
	if serverImage == "" {
		serverImage = "eclipse-mosquitto:2"
	}

	var port string
	if len(fixedPort) > 0 && fixedPort[0] != "" {
		port = fixedPort[0]
	} else {
		portInt, err := getFreePort()
		if err != nil {
			return "", nil, fmt.Errorf("failed to find free port: %w", err)
		}
		port = fmt.Sprintf("%d", portInt)
	}

	baseConfig := fmt.Sprintf("listener %s\nallow_anonymous true\n", port)
	finalConfig := baseConfig + configContent

	tmpfile, err := os.CreateTemp("", "mosquitto-*.conf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp config file: %w", err)
	}
	if _, err := tmpfile.Write([]byte(finalConfig)); err != nil {
		tmpfile.Close()
		return "", nil, fmt.Errorf("failed to write to temp config file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close temp config file: %w", err)
	}
	tmpFileName := tmpfile.Name()

	req := testcontainers.ContainerRequest{
		Image: serverImage,
		// Host network mode bypasses the need for Podman to create a
		// bridge and manipulate nftables, which fails on some rootless
		// setups, while still letting us pick a free dynamic port.
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.NetworkMode = "host"
		},
		WaitingFor: wait.ForListeningPort(nat.Port(port + "/tcp")),
		Files: []testcontainers.ContainerFile{{
			HostFilePath:      tmpFileName,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0644,
		}},
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	defer os.Remove(tmpFileName)

	if err != nil {
		return "", nil, fmt.Errorf("failed to start broker container: %w", err)
	}

	addr := fmt.Sprintf("localhost:%s", port)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if err := ctr.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate container: %v\n", err)
			}
		})
	}

	cleanupMu.Lock()
	containerCleanups = append(containerCleanups, cleanup)
	cleanupMu.Unlock()

	return addr, cleanup, nil
}

// startBroker is the helper tests call. configContent is a custom
// mosquitto config fragment, or empty for the default. The shared
// container is reused whenever the default config is requested, the way
// the teacher's suite reuses one container across cases that don't need
// isolation.
func startBroker(t *testing.T, configContent string, opts ...string) (string, func()) {
	t.Helper()

	if configContent == "" && len(opts) == 0 && sharedServer != "" {
		return sharedServer, func() {}
	}

	addr, cleanup, err := startContainer(configContent, opts...)
	if err != nil {
		t.Fatalf("failed to start broker: %v", err)
	}
	return addr, cleanup
}
