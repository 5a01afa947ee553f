package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FaceOverlay/pkg/faceapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(func(url string) faceapi.Runtime {
		return faceapi.NewWebSocketRuntime(url)
	})

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
