package sl

import (
	"fmt"
	"log/slog"
	"unicode/utf8"
)

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Secret keeps the first 5 characters of an API key so logs can tell
// which key is configured without leaking it
func Secret(some string) slog.Attr {
	r := "***"
	if len(some) > 5 {
		r = fmt.Sprintf("%s***", some[0:5])
	}
	if some == "" {
		r = "?"
	}
	return slog.Attr{
		Key:   "secret",
		Value: slog.StringValue(r),
	}
}

func Module(mod string) slog.Attr {
	return slog.Attr{
		Key:   "mod",
		Value: slog.StringValue(mod),
	}
}

// Stem tags a log line with the artifact it belongs to
func Stem(stem string) slog.Attr {
	return slog.String("stem", stem)
}

// Truncate shortens long free text (prompts, raw responses) for log output
func Truncate(key, text string, max int) slog.Attr {
	if max > 0 && len(text) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return slog.String(key, text)
}
