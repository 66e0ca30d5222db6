package device

import "strings"

// ManagerPath is the D-Bus object path of the manager singleton (spec §4.7).
const ManagerPath = "/org/freedesktop/UPower"

// DevicesPrefix is the object-path prefix under which every device,
// including the synthetic display device, is exposed.
const DevicesPrefix = ManagerPath + "/devices"

// DisplayDevicePath is the well-known path of the synthesized aggregate
// device (spec §4.7).
const DisplayDevicePath = DevicesPrefix + "/DisplayDevice"

// ObjectPath derives the stable object path for (kind, nativePath) per
// spec §3: "Identified by a stable object_path derived from
// (kind, native_path)". The native path is stripped of characters D-Bus
// object paths disallow and prefixed with the device kind so that two
// different kinds never collide on the same slug.
func ObjectPath(kind Kind, nativePath string) string {
	return DevicesPrefix + "/" + string(kind) + "_" + Slug(nativePath)
}

// Slug converts an arbitrary native identity string (a sysfs path, a
// vendor/product/address tuple, a NUT UPS name) into the
// [A-Za-z0-9_]+ alphabet D-Bus object path segments require.
func Slug(nativePath string) string {
	s := strings.TrimPrefix(nativePath, "/sys/class/power_supply/")
	s = strings.TrimPrefix(s, "/sys/class/")
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "device"
	}
	return out
}
