package utils

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"
)

// ForwardSignals relays termination signals received by dmake to a running
// container. The returned function stops forwarding.
func ForwardSignals(ctx context.Context, dockerClient *client.Client, containerID string) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigChan:
				// The daemon accepts numeric signals; sig.String() yields names like "interrupt".
				if err := dockerClient.ContainerKill(ctx, containerID, strconv.Itoa(int(sig.(syscall.Signal)))); err != nil {
					// Container might have already exited.
					if !client.IsErrNotFound(err) {
						logrus.Debugf("Failed to forward signal %s: %v", sig, err)
					}
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
