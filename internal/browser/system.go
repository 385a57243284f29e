package browser

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"runtime"
)

// Dispatcher hands URIs the client cannot fetch to another program.
type Dispatcher interface {
	Dispatch(ctx context.Context, u *url.URL) error
}

// Connectivity reports whether the machine appears to be online.
type Connectivity interface {
	Online() bool
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, u *url.URL) error

func (f DispatcherFunc) Dispatch(ctx context.Context, u *url.URL) error { return f(ctx, u) }

// SystemDispatcher opens URIs with the desktop's default handler.
type SystemDispatcher struct {
	// Command overrides the opener program; empty selects one for the OS.
	Command string
}

// Dispatch starts the opener without waiting for it to exit.
func (d SystemDispatcher) Dispatch(_ context.Context, u *url.URL) error {
	name, args := d.command()
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("no program to open %s links: %w", u.Scheme, err)
	}
	cmd := exec.Command(path, append(args, u.String())...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	go cmd.Wait() //nolint:errcheck // reaped only; the opener reports its own errors
	return nil
}

func (d SystemDispatcher) command() (string, []string) {
	if d.Command != "" {
		return d.Command, nil
	}
	switch runtime.GOOS {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	}
	return "xdg-open", nil
}

// InterfaceConnectivity considers the machine online when any non-loopback
// interface is up and has an address.
type InterfaceConnectivity struct{}

func (InterfaceConnectivity) Online() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if addrs, err := iface.Addrs(); err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
