//go:build !tinygo

// provision-client plays the phone app against eink-sim: it connects to the
// simulated peripheral, prints the GATT hello, writes one provisioning
// payload and echoes status notifications until the device drops the link.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"einkcode-go/platform/host"
)

func main() {
	fs := pflag.NewFlagSet("provision-client", pflag.ExitOnError)
	fs.String("url", "ws://127.0.0.1:8765"+host.GATTPath, "peripheral websocket URL")
	fs.String("ssid", "", "WiFi network name")
	fs.String("password", "", "WiFi password")
	fs.String("mode", "", "workload to run (fun, sensor, shelf)")
	fs.Int("interval", 0, "refresh interval in minutes")
	fs.StringToString("set", nil, "extra string fields, key=value")
	fs.String("payload", "", "raw JSON payload; overrides the other fields")
	fs.Duration("wait", 10*time.Second, "how long to wait for notifications")
	_ = fs.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("EINK_PROV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	payload, err := buildPayload(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "payload:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, v.GetDuration("wait"))
	defer cancel()

	if err := provision(ctx, v.GetString("url"), payload); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintln(os.Stderr, "provision:", err)
		os.Exit(1)
	}
}

func buildPayload(v *viper.Viper) ([]byte, error) {
	if raw := v.GetString("payload"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, errors.New("not valid json")
		}
		return []byte(raw), nil
	}
	m := map[string]any{}
	for k, val := range v.GetStringMapString("set") {
		m[k] = val
	}
	if s := v.GetString("ssid"); s != "" {
		m["wifiSSID"] = s
	}
	if s := v.GetString("password"); s != "" {
		m["wifiPassword"] = s
	}
	if s := v.GetString("mode"); s != "" {
		m["mode"] = s
	}
	if n := v.GetInt("interval"); n > 0 {
		m["refreshInterval"] = n
	}
	m["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(m)
}

func provision(ctx context.Context, url string, payload []byte) error {
	d := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var hello host.Hello
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	fmt.Printf("connected to %q service=%s\n", hello.Name, hello.Service)
	for k, val := range hello.Info {
		fmt.Printf("  %s: %s\n", k, val)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	fmt.Printf("wrote %d bytes\n", len(payload))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				fmt.Println("peripheral closed the link:", ce.Code)
			} else {
				fmt.Println("link lost:", err)
			}
			return nil
		}
		fmt.Println("notify:", string(msg))
	}
}
