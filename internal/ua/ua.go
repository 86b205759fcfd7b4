// internal/ua/ua.go
//
// User-Agent classification for admin-API request logs.
//
// This wrapper isolates the third-party `github.com/avct/uasurfer` API so
// the rest of the codebase never sees its enums or structs.  Operators
// mostly hit the API with curl or scripts; browsers and crawlers are the
// exception worth flagging in the logs.
package ua

import (
	"fmt"
	"strconv"

	surfer "github.com/avct/uasurfer"
)

// Info carries the UA attributes written to request logs.
//
// Example (curl):
//
//	Kind      "tool"
//	Browser   "BrowserUnknown"
//	OS        "OSUnknown"
//	Device    "Other"
type Info struct {
	Kind      string // "bot", "browser", or "tool"
	Browser   string
	Version   string
	OS        string
	OSVersion string
	Device    string
	IsBot     bool
}

// Parse converts a raw header into an Info struct.
func Parse(raw string) Info {
	u := surfer.Parse(raw)

	info := Info{
		Browser:   u.Browser.Name.String(),
		Version:   versionToString(u.Browser.Version),
		OS:        u.OS.Name.String(),
		OSVersion: versionToString(u.OS.Version),
		IsBot:     u.IsBot(),
	}

	switch u.DeviceType {
	case surfer.DeviceComputer:
		info.Device = "Desktop"
	case surfer.DeviceTablet:
		info.Device = "Tablet"
	case surfer.DevicePhone, surfer.DeviceWearable:
		info.Device = "Mobile"
	default:
		info.Device = "Other"
	}

	switch {
	case info.IsBot:
		info.Kind = "bot"
	case u.Browser.Name == surfer.BrowserUnknown:
		info.Kind = "tool"
	default:
		info.Kind = "browser"
	}
	return info
}

// versionToString renders a semantic version in dotted form while trimming
// trailing zeros, e.g. 17.0.0 → "17", 17.3.0 → "17.3", 17.3.1 → "17.3.1".
func versionToString(v surfer.Version) string {
	if v.Major == 0 && v.Minor == 0 && v.Patch == 0 {
		return ""
	}
	if v.Patch != 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	if v.Minor != 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(int(v.Major))
}
