/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package media

import "strings"

// DeviceInfo describes one capture device as reported by the platform.
type DeviceInfo struct {
	ID    string
	Label string
}

var facingHints = map[Facing][]string{
	FacingUser:        {"front", "user", "facetime", "integrated"},
	FacingEnvironment: {"back", "rear", "environment", "world"},
}

// SelectByFacing picks the camera for the requested facing. Labels are
// matched first. Without a match the user camera is the first device not
// labelled as rear facing, and the environment camera is the last device
// not labelled as front facing, provided there is more than one camera.
func SelectByFacing(devices []DeviceInfo, facing Facing) (DeviceInfo, bool) {
	if len(devices) == 0 {
		return DeviceInfo{}, false
	}

	for _, d := range devices {
		if hinted(d, facing) {
			return d, true
		}
	}

	other := facing.Opposite()
	if facing == FacingUser {
		for _, d := range devices {
			if !hinted(d, other) {
				return d, true
			}
		}
		return DeviceInfo{}, false
	}

	if len(devices) < 2 {
		return DeviceInfo{}, false
	}
	for i := len(devices) - 1; i > 0; i-- {
		if !hinted(devices[i], other) {
			return devices[i], true
		}
	}
	return DeviceInfo{}, false
}

func hinted(d DeviceInfo, facing Facing) bool {
	label := strings.ToLower(d.Label)
	for _, hint := range facingHints[facing] {
		if strings.Contains(label, hint) {
			return true
		}
	}
	return false
}
