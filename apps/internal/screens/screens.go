// Package screens builds the screen fragments the workloads share.
package screens

import (
	"strconv"

	"einkcode-go/drivers/sht31"
	"einkcode-go/services/appmgr"
	"einkcode-go/services/display"
	"einkcode-go/x/conv"
)

// BatteryFooter is "Battery 73%", or "" if the battery cannot be read.
func BatteryFooter(p appmgr.Power) string {
	if p == nil {
		return ""
	}
	st, err := p.ClassifyBattery()
	if err != nil {
		return ""
	}
	return "Battery " + strconv.Itoa(st.Percent) + "%"
}

// Signal names an RSSI bucket.
func Signal(rssi int) string {
	switch {
	case rssi > -50:
		return "Excellent"
	case rssi >= -60:
		return "Great"
	case rssi >= -70:
		return "Good"
	case rssi >= -80:
		return "Fair"
	case rssi >= -90:
		return "Weak"
	default:
		return "Very Poor"
	}
}

// WifiLine is "WiFi: -61 dBm (Great)" when connected, "" otherwise.
func WifiLine(n appmgr.Network) string {
	if n == nil || !n.Connected() {
		return ""
	}
	rssi := n.RSSI()
	return "WiFi: " + strconv.Itoa(rssi) + " dBm (" + Signal(rssi) + ")"
}

// Climate renders a temperature/humidity sample. A failed read becomes an
// error screen rather than an error.
func Climate(title string, s sht31.Sample, err error, celsius bool) display.Screen {
	if err != nil {
		return display.Screen{Title: "Sensor Error", Lines: []string{"Read failed"}}
	}
	temp := conv.Deci(conv.DeciF(s.DeciC)) + "°F"
	if celsius {
		temp = conv.Deci(s.DeciC) + "°C"
	}
	return display.Screen{
		Title: title,
		Lines: []string{
			"Temp: " + temp,
			"Humidity: " + conv.Deci(s.DeciRH) + "%",
		},
	}
}

// Message is a title plus body lines.
func Message(title string, lines ...string) display.Screen {
	return display.Screen{Title: title, Lines: lines}
}
