//go:build linux

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"upowerd/internal/device"
)

// defaultSysfsRoot is the default power_supply class tree; overridable for tests
// via UPOWER_MOCK_SYSFS_ROOT (spec §6).
const defaultSysfsRoot = "/sys/class/power_supply"

// sysfsAttrs lists every file this adapter reads per device directory,
// mapped to the raw attribute name normalize.go expects (internal/device's
// raw.go doc comment lists the recognized set). File names mirror the
// kernel's power_supply class ABI.
var sysfsAttrs = map[string]string{
	"type":               "type",
	"scope":              "scope",
	"online":             "online",
	"present":            "present",
	"status":             "status",
	"capacity":           "capacity",
	"capacity_level":     "capacity_level",
	"energy_full":        "energy_full",
	"energy_full_design": "energy_full_design",
	"energy_now":         "energy_now",
	"charge_full":        "charge_full",
	"charge_full_design": "charge_full_design",
	"charge_now":         "charge_now",
	"voltage_now":        "voltage_now",
	"power_now":          "power_now",
	"current_now":        "current_now",
	"temp":               "temp",
	"technology":         "technology",
	"manufacturer":       "manufacturer",
	"model_name":         "model_name",
	"serial_number":      "serial_number",
}

// SysfsAdapter is the Linux native source backed by /sys/class/power_supply
// (spec §4.1). Change notification prefers a kernel uevent netlink socket
// (matches udev's own mechanism); if that socket cannot be opened it falls
// back to an fsnotify watch on the class directory, and Subscribe returns
// ErrChangeEventsUnavailable only if neither primitive can be opened, so the
// backend polls instead.
type SysfsAdapter struct {
	root string

	mu      sync.Mutex
	closers []func() error
}

// NewSysfsAdapter builds an adapter rooted at root (defaultSysfsRoot, or
// UPOWER_MOCK_SYSFS_ROOT's value when set for testing against a fixture
// tree shaped like the real power_supply class).
func NewSysfsAdapter(root string) *SysfsAdapter {
	if root == "" {
		root = defaultSysfsRoot
	}
	return &SysfsAdapter{root: root}
}

func (a *SysfsAdapter) Enumerate(ctx context.Context) ([]RawSource, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sysfs: read %s: %w", a.root, err)
	}
	out := make([]RawSource, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		devicePath := filepath.Join(a.root, name)
		kind := classifySysfsType(readAttr(devicePath, "type"))
		out = append(out, RawSource{
			ID:         name,
			Kind:       kind,
			NativePath: devicePath,
		})
	}
	return out, nil
}

func (a *SysfsAdapter) Refresh(ctx context.Context, src RawSource) (device.RawSnapshot, error) {
	info, err := os.Stat(src.NativePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("sysfs: source %s gone: %w", src.NativePath, err)
		}
		return nil, fmt.Errorf("sysfs: stat %s: %w", src.NativePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sysfs: %s is not a directory", src.NativePath)
	}
	snap := device.RawSnapshot{}
	for file, attr := range sysfsAttrs {
		if v, ok := readAttrOK(src.NativePath, file); ok {
			snap[attr] = v
		}
	}
	return snap, nil
}

// Subscribe opens a kernel uevent netlink socket (NETLINK_KOBJECT_UEVENT)
// and, if that fails, an fsnotify watch on the class root. Either primitive
// delivers an EventAdd, EventRemove or EventChange naming the device
// directory the kernel event concerns; the backend refreshes to find
// what actually moved (spec
// §4.3's coldplug/debounce logic interprets the resulting Add/Remove/Change
// sequence).
func (a *SysfsAdapter) Subscribe(ctx context.Context, sink chan<- Event) (Subscription, error) {
	if sub, err := a.subscribeNetlink(ctx, sink); err == nil {
		return sub, nil
	}
	if sub, err := a.subscribeFsnotify(ctx, sink); err == nil {
		return sub, nil
	}
	return nil, ErrChangeEventsUnavailable
}

func (a *SysfsAdapter) subscribeNetlink(ctx context.Context, sink chan<- Event) (Subscription, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("sysfs: netlink socket: %w", err)
	}
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sysfs: netlink bind: %w", err)
	}

	stop := make(chan struct{})
	go a.netlinkLoop(fd, sink, stop)

	return closerFunc(func() error {
		close(stop)
		return unix.Close(fd)
	}), nil
}

func (a *SysfsAdapter) netlinkLoop(fd int, sink chan<- Event, stop <-chan struct{}) {
	buf := make([]byte, 8192)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return
		}
		msg := string(buf[:n])
		if !strings.Contains(msg, "power_supply") {
			continue
		}
		name := ueventDeviceName(msg)
		if name == "" {
			continue
		}
		devicePath := filepath.Join(a.root, name)
		kind := classifySysfsType(readAttr(devicePath, "type"))
		evt := EventChange
		if strings.Contains(msg, "add@") {
			evt = EventAdd
		} else if strings.Contains(msg, "remove@") {
			evt = EventRemove
		}
		select {
		case sink <- Event{Type: evt, Source: RawSource{ID: name, Kind: kind, NativePath: devicePath}}:
		case <-stop:
			return
		}
	}
}

// ueventDeviceName extracts the trailing path segment from a uevent
// message's DEVPATH=.../class/power_supply/<name> line.
func ueventDeviceName(msg string) string {
	const marker = "power_supply/"
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	rest := msg[idx+len(marker):]
	for i, c := range rest {
		if c == 0 || c == '\x00' || c == '\n' {
			rest = rest[:i]
			break
		}
	}
	rest = strings.TrimRight(rest, "\x00")
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func (a *SysfsAdapter) subscribeFsnotify(ctx context.Context, sink chan<- Event) (Subscription, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("sysfs: fsnotify: %w", err)
	}
	if err := watcher.Add(a.root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("sysfs: watch %s: %w", a.root, err)
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				devicePath := filepath.Join(a.root, name)
				kind := classifySysfsType(readAttr(devicePath, "type"))
				et := EventChange
				switch {
				case ev.Op&fsnotify.Create != 0:
					et = EventAdd
				case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
					et = EventRemove
				}
				select {
				case sink <- Event{Type: et, Source: RawSource{ID: name, Kind: kind, NativePath: devicePath}}:
				case <-ctx.Done():
					return
				}
			case <-watcher.Errors:
				continue
			case <-ctx.Done():
				return
			}
		}
	}()
	return watcher, nil
}

func (a *SysfsAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func classifySysfsType(raw string) device.Kind {
	switch strings.TrimSpace(raw) {
	case "Mains", "Wireless":
		return device.KindLinePower
	case "Battery":
		return device.KindBattery
	case "UPS":
		return device.KindUPS
	case "Mouse":
		return device.KindMouse
	case "Keyboard":
		return device.KindKeyboard
	default:
		return device.KindUnknown
	}
}

func readAttr(devicePath, file string) string {
	v, _ := readAttrOK(devicePath, file)
	return v
}

func readAttrOK(devicePath, file string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(devicePath, file))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
