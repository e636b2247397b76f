// Package config implements the configuration store (C5): the live typed
// configuration, its persistence to non-volatile key/value storage, and a
// change-notification stream observed by the proxy, renderer and HTTP shim.
package config

import "fmt"

// LogLevel enumerates the device log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// WifiConfig describes station and access-point Wi-Fi settings.
type WifiConfig struct {
	StationSSID     string `json:"station_ssid" yaml:"station_ssid"`
	StationPassword string `json:"station_password,omitempty" yaml:"station_password,omitempty"`
	DHCP            bool   `json:"dhcp" yaml:"dhcp"`
	StaticAddress   string `json:"static_address,omitempty" yaml:"static_address,omitempty"`
	StaticGateway   string `json:"static_gateway,omitempty" yaml:"static_gateway,omitempty"`
	StaticNetmask   string `json:"static_netmask,omitempty" yaml:"static_netmask,omitempty"`
	StaticDNS       string `json:"static_dns,omitempty" yaml:"static_dns,omitempty"`
	APSSID          string `json:"ap_ssid,omitempty" yaml:"ap_ssid,omitempty"`
	APPassword      string `json:"ap_password,omitempty" yaml:"ap_password,omitempty"`
}

// OBDConfig describes the upstream adapter and local proxy listener.
type OBDConfig struct {
	AdapterAddress string `json:"adapter_address" yaml:"adapter_address"`
	AdapterPort    int    `json:"adapter_port" yaml:"adapter_port"`
	ListenPort     int    `json:"listen_port" yaml:"listen_port"`
	TimeoutMs      int    `json:"timeout_ms" yaml:"timeout_ms"`
}

// LEDConfig describes the WS2812B strip attached to the device.
type LEDConfig struct {
	DataPin    string `json:"data_pin" yaml:"data_pin"`
	TotalLEDs  int    `json:"total_leds" yaml:"total_leds"`
	Brightness int    `json:"brightness" yaml:"brightness"`
}

// Color is an RGB triple.
type Color struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// Threshold is one entry in the ordered shift-light threshold sequence.
type Threshold struct {
	Name     string `json:"name" yaml:"name"`
	RPMMin   int    `json:"rpm_min" yaml:"rpm_min"`
	StartLED int    `json:"start_led" yaml:"start_led"`
	EndLED   int    `json:"end_led" yaml:"end_led"`
	Color    Color  `json:"color" yaml:"color"`
	Blink    bool   `json:"blink" yaml:"blink"`
	BlinkMs  int    `json:"blink_ms" yaml:"blink_ms"`
}

// Config is the single authoritative configuration record.
type Config struct {
	Wifi       WifiConfig  `json:"wifi" yaml:"wifi"`
	OBD        OBDConfig   `json:"obd" yaml:"obd"`
	LED        LEDConfig   `json:"led" yaml:"led"`
	Thresholds []Threshold `json:"thresholds" yaml:"thresholds"`
	LogLevel   LogLevel    `json:"log_level" yaml:"log_level"`
}

// MaxOBDTimeoutMs is the spec-mandated upper bound on obd2_timeout_ms.
const MaxOBDTimeoutMs = 4500

// Validate enforces the invariants in the data model (§3) and the
// configuration store's acceptance rules (§4.5). It never mutates c.
func (c Config) Validate() error {
	if len(c.Thresholds) == 0 {
		return fmt.Errorf("config: thresholds must be non-empty")
	}
	if c.LED.TotalLEDs < 1 {
		return fmt.Errorf("config: led.total_leds must be >= 1")
	}
	if c.LED.Brightness < 0 || c.LED.Brightness > 255 {
		return fmt.Errorf("config: led.brightness must be in [0,255]")
	}
	for i, th := range c.Thresholds {
		if th.StartLED > th.EndLED {
			return fmt.Errorf("config: threshold %q (%d): start_led > end_led", th.Name, i)
		}
		if th.EndLED >= c.LED.TotalLEDs {
			return fmt.Errorf("config: threshold %q (%d): end_led %d out of range for total_leds %d", th.Name, i, th.EndLED, c.LED.TotalLEDs)
		}
		if th.Blink && th.BlinkMs <= 0 {
			return fmt.Errorf("config: threshold %q (%d): blink_ms must be > 0 when blink is set", th.Name, i)
		}
	}
	if !validPort(c.OBD.AdapterPort) {
		return fmt.Errorf("config: obd.adapter_port out of range: %d", c.OBD.AdapterPort)
	}
	if !validPort(c.OBD.ListenPort) {
		return fmt.Errorf("config: obd.listen_port out of range: %d", c.OBD.ListenPort)
	}
	if c.OBD.TimeoutMs <= 0 || c.OBD.TimeoutMs > MaxOBDTimeoutMs {
		return fmt.Errorf("config: obd.timeout_ms must be in (0,%d]", MaxOBDTimeoutMs)
	}
	return nil
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }
