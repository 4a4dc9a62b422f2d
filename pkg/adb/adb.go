// Package adb talks to Android devices through the adb command line tool.
//
// A Device is an explicit session value obtained with Open; nothing in this
// package keeps a process-wide current device.
package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kataras/figma-droid/pkg/bitmap"
)

// DefaultPath is the adb binary looked up in PATH when none is configured.
const DefaultPath = "adb"

var (
	ErrNotInstalled    = errors.New("adb is not installed or not in PATH")
	ErrNoDevices       = errors.New("no devices connected")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrMultipleDevices = errors.New("multiple devices connected")
)

// CaptureError is returned when the device screen could not be captured or
// the captured bytes could not be decoded.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("screen capture failed (%s): %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Runner executes a program and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec. Standard error is attached to the
// returned error when the command fails.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}

	return stdout.Bytes(), nil
}

// Options configures how adb is reached and which device is used.
type Options struct {
	Serial  string // empty selects the only connected device
	ADBPath string
	Runner  Runner
}

func (o Options) path() string {
	if o.ADBPath != "" {
		return o.ADBPath
	}
	return DefaultPath
}

func (o Options) runner() Runner {
	if o.Runner != nil {
		return o.Runner
	}
	return ExecRunner{}
}

// DeviceInfo is one line of "adb devices".
type DeviceInfo struct {
	Serial string `json:"serial"`
	State  string `json:"state"`
}

// Devices lists the devices known to the adb server.
func Devices(ctx context.Context, opts Options) ([]DeviceInfo, error) {
	out, err := opts.runner().Run(ctx, opts.path(), "devices")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
		}
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	return parseDevices(string(out)), nil
}

func parseDevices(out string) []DeviceInfo {
	devices := []DeviceInfo{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, DeviceInfo{Serial: fields[0], State: fields[1]})
	}
	return devices
}

// Device is a session bound to one device serial.
type Device struct {
	Serial       string
	AutoSelected bool // no serial was requested and the only device was picked

	adbPath string
	runner  Runner
}

// Open verifies that adb is usable and selects a device. With a serial the
// device must be connected; without one exactly one device must be.
func Open(ctx context.Context, opts Options) (*Device, error) {
	runner := opts.runner()
	if _, err := runner.Run(ctx, opts.path(), "version"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}

	devices, err := Devices(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: connect a device and try again", ErrNoDevices)
	}

	serials := make([]string, len(devices))
	for i, d := range devices {
		serials[i] = d.Serial
	}
	available := strings.Join(serials, ", ")

	dev := &Device{adbPath: opts.path(), runner: runner}

	switch {
	case opts.Serial != "":
		found := false
		for _, s := range serials {
			if s == opts.Serial {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s (available devices: %s)", ErrDeviceNotFound, opts.Serial, available)
		}
		dev.Serial = opts.Serial
	case len(serials) == 1:
		dev.Serial = serials[0]
		dev.AutoSelected = true
	default:
		return nil, fmt.Errorf("%w: %s; specify a device serial in the config file or with --device", ErrMultipleDevices, available)
	}

	return dev, nil
}

func (d *Device) run(ctx context.Context, args ...string) ([]byte, error) {
	return d.runner.Run(ctx, d.adbPath, append([]string{"-s", d.Serial}, args...)...)
}

func (d *Device) shell(ctx context.Context, command string) (string, error) {
	out, err := d.run(ctx, "shell", command)
	if err != nil {
		return "", fmt.Errorf("adb shell %q failed: %w", command, err)
	}
	return string(out), nil
}

// Screencap returns the PNG bytes of the current screen.
func (d *Device) Screencap(ctx context.Context) ([]byte, error) {
	out, err := d.run(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, &CaptureError{Op: "screencap", Err: err}
	}
	if len(out) == 0 {
		return nil, &CaptureError{Op: "screencap", Err: errors.New("empty output")}
	}
	return out, nil
}

// CaptureScreen captures and decodes the current screen.
func (d *Device) CaptureScreen(ctx context.Context) (*bitmap.Bitmap, error) {
	data, err := d.Screencap(ctx)
	if err != nil {
		return nil, err
	}

	bm, err := bitmap.DecodeBytes(data)
	if err != nil {
		return nil, &CaptureError{Op: "decode", Err: err}
	}
	return bm, nil
}

// Shell runs command on the device. A leading "adb shell " or "adb " is
// dropped so commands copied from a terminal work as is.
func (d *Device) Shell(ctx context.Context, command string) (string, error) {
	if rest, ok := strings.CutPrefix(command, "adb shell "); ok {
		command = rest
	} else if rest, ok := strings.CutPrefix(command, "adb "); ok {
		command = rest
	}
	return d.shell(ctx, command)
}

// Packages returns the installed package names.
func (d *Device) Packages(ctx context.Context) ([]string, error) {
	out, err := d.shell(ctx, "pm list packages")
	if err != nil {
		return nil, err
	}

	packages := []string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		packages = append(packages, strings.TrimPrefix(line, "package:"))
	}
	return packages, nil
}

// PackageActionIntents returns the non-data actions registered by pkg, read
// from the activity resolver table of "dumpsys package".
func (d *Device) PackageActionIntents(ctx context.Context, pkg string) ([]string, error) {
	out, err := d.shell(ctx, "dumpsys package "+pkg)
	if err != nil {
		return nil, err
	}
	return parseActionIntents(out), nil
}

func parseActionIntents(out string) []string {
	actions := []string{}

	start := strings.Index(out, "Activity Resolver Table:")
	if start == -1 {
		return actions
	}
	section := out[start:]

	nonData := strings.Index(section, "\n  Non-Data Actions:")
	if nonData == -1 {
		return actions
	}
	section = section[nonData:]
	if end := strings.Index(section, "\n\n"); end != -1 {
		section = section[:end]
	}

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "android.") || strings.HasPrefix(line, "com.") {
			actions = append(actions, line)
		}
	}
	return actions
}

// LaunchApp starts pkg. With an activity it uses "am start -n", prefixing
// the package when the activity has no "/"; otherwise it sends a single
// launcher intent through monkey. stopFirst force-stops the app beforehand.
func (d *Device) LaunchApp(ctx context.Context, pkg, activity string, stopFirst bool) (string, error) {
	var parts []string
	if stopFirst {
		if _, err := d.shell(ctx, "am force-stop "+pkg); err != nil {
			return "", err
		}
		parts = append(parts, "Force-stopped "+pkg)
	}

	var command string
	if activity != "" {
		component := activity
		if !strings.Contains(activity, "/") {
			component = pkg + "/" + activity
		}
		command = "am start -n " + component
	} else {
		command = "monkey -p " + pkg + " -c android.intent.category.LAUNCHER 1"
	}

	out, err := d.shell(ctx, command)
	if err != nil {
		return "", err
	}
	if out = strings.TrimSpace(out); out != "" {
		parts = append(parts, out)
	}

	if len(parts) == 0 {
		return "Launch command sent for " + pkg, nil
	}
	return strings.Join(parts, "\n"), nil
}
