package sl

import (
	"log/slog"
	"strings"
)

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Module(mod string) slog.Attr {
	return slog.String("mod", mod)
}

// Secret logs only the head of a sensitive value.
func Secret(key, value string) slog.Attr {
	if len(value) <= 4 {
		return slog.String(key, strings.Repeat("*", len(value)))
	}
	return slog.String(key, value[:4]+"***")
}
