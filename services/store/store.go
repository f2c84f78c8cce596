// Package store is the firmware's view of the durable key-value namespace
// (NVS "Preferences" on the device). Handles are opened per call and released
// on every exit path; nothing holds a namespace open across operations.
package store

import (
	"strconv"

	"einkcode-go/errcode"
)

// Namespace used for all persisted configuration.
const Namespace = "config"

// Persisted keys.
const (
	KeyWiFiSSID        = "wifiSSID"
	KeyWiFiPassword    = "wifiPassword"
	KeyMode            = "mode"
	KeyRefreshInterval = "refreshInterval"
	KeyTimestamp       = "timestamp"
	KeyAPIs            = "apis"
	KeyConfigJSON      = "configJson"
	KeySkipBLE         = "skipBLE"

	KeyUnits               = "units"
	KeyNemoToken           = "nemoToken"
	KeyNemoURL             = "nemoUrl"
	KeyTemperatureSensorID = "temperatureSensorId"
	KeyHumiditySensorID    = "humiditySensorId"
	KeySensorLocation      = "sensorLocation"
	KeyBinID               = "binId"
	KeyServerHost          = "serverHost"
	KeyServerPort          = "serverPort"
	KeyMessages            = "messages"
)

// Reader is the read side of an open namespace.
type Reader interface {
	Get(key string) (string, bool)
}

// Writer is a read-write namespace handle.
type Writer interface {
	Reader
	Put(key, value string) error
	Remove(key string) error
}

// Handle is an open namespace. Writes become durable on Commit; Close
// releases the handle and discards anything not committed.
type Handle interface {
	Writer
	Commit() error
	Close() error
}

// Backend opens namespaces.
type Backend interface {
	Open(namespace string, readOnly bool) (Handle, error)
}

// View runs fn against a read-only handle.
func View(b Backend, ns string, fn func(Reader) error) (err error) {
	h, err := b.Open(ns, true)
	if err != nil {
		return errcode.Wrap(errcode.StoreError, "store.open", err)
	}
	defer func() {
		if cerr := h.Close(); err == nil && cerr != nil {
			err = errcode.Wrap(errcode.StoreError, "store.close", cerr)
		}
	}()
	return fn(h)
}

// Update runs fn against a read-write handle and commits only if fn
// succeeds. The handle is closed on every path.
func Update(b Backend, ns string, fn func(Writer) error) (err error) {
	h, err := b.Open(ns, false)
	if err != nil {
		return errcode.Wrap(errcode.StoreError, "store.open", err)
	}
	defer func() {
		if cerr := h.Close(); err == nil && cerr != nil {
			err = errcode.Wrap(errcode.StoreError, "store.close", cerr)
		}
	}()
	if err = fn(h); err != nil {
		return err
	}
	if err = h.Commit(); err != nil {
		return errcode.Wrap(errcode.StoreError, "store.commit", err)
	}
	return nil
}

// ---- typed helpers ----

func GetString(r Reader, key, def string) string {
	if v, ok := r.Get(key); ok {
		return v
	}
	return def
}

func GetInt(r Reader, key string, def int64) int64 {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func GetBool(r Reader, key string) bool {
	v, ok := r.Get(key)
	return ok && v == "1"
}

func PutInt(w Writer, key string, v int64) error {
	return w.Put(key, strconv.FormatInt(v, 10))
}

func PutBool(w Writer, key string, v bool) error {
	if v {
		return w.Put(key, "1")
	}
	return w.Put(key, "0")
}
