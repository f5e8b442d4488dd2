package serialmux

import (
	"context"
	"net/http"
	"sync"

	"tailscale.com/tsweb"
)

// DisabledSerialMux stands in for the IMU when the service runs with
// -disable-serial. No lines are ever delivered: subscribers only see their
// channel close on Unsubscribe or Close, which ends a SerialSource cleanly.
// Commands are accepted and remembered so the admin surface and the
// device init sequence behave as with a real port.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	commands    []string
	closed      bool
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subscribers: make(map[string]chan string)}
}

// Subscribe returns a channel that never carries a line. After Close the
// channel is returned already closed.
func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		delete(d.subscribers, id)
		close(ch)
	}
}

// SendCommand records command instead of writing it to a device.
func (d *DisabledSerialMux) SendCommand(command string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, command)
	return nil
}

// Commands returns every command sent so far, oldest first.
func (d *DisabledSerialMux) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// Monitor blocks until ctx ends; there is no port to read.
func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Initialize is a no-op: there is no device clock to sync.
func (d *DisabledSerialMux) Initialize() error { return nil }

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for id, ch := range d.subscribers {
		delete(d.subscribers, id)
		close(ch)
	}
	return nil
}

// AttachAdminRoutes mounts the same /debug/ paths as a live mux. The tail
// answers 503 since no IMU is attached; send-command-api records the
// command.
func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := r.FormValue("command")
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		d.SendCommand(command)
		w.Write([]byte("serial disabled: command recorded, not sent"))
	})

	debug.HandleFunc("tail", "live tail of raw IMU lines (disabled)", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "serial disabled: no IMU attached", http.StatusServiceUnavailable)
	})
}
