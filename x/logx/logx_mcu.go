//go:build tinygo

package logx

var minLevel = levelInfo

// SetLevel changes the minimum level for all loggers.
func SetLevel(s string) { minLevel = parseLevel(s) }

// Sync is a no-op: println writes through to the serial console.
func Sync() {}

type printBackend struct {
	tag string
}

func newBackend(component string) backend {
	return printBackend{tag: "[" + component + "]"}
}

var prefixes = [...]string{"Debug:", "Info:", "Warn:", "Error:"}

func (p printBackend) log(lv level, msg string, kv []any) {
	if lv < minLevel {
		return
	}
	print(prefixes[lv], " ", p.tag, " ", msg)
	for i := 0; i+1 < len(kv); i += 2 {
		k, _ := kv[i].(string)
		print(" ", k, "=")
		printValue(kv[i+1])
	}
	println()
}

func printValue(v any) {
	switch x := v.(type) {
	case string:
		print(x)
	case int:
		print(x)
	case int32:
		print(x)
	case int64:
		print(x)
	case uint32:
		print(x)
	case uint64:
		print(x)
	case bool:
		print(x)
	case error:
		print(x.Error())
	case interface{ String() string }:
		print(x.String())
	default:
		print("?")
	}
}
