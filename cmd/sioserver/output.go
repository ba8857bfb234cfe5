package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	sio "github.com/karagenc/socketio-server"
	"github.com/karagenc/socketio-server/internal/sync"
	"golang.org/x/term"
)

var colors = []string{
	"#e21400", "#91580f", "#f8a700", "#f78b00",
	"#58dc00", "#287b00", "#a8f07a", "#4ae8c4",
	"#3b88eb", "#3824aa", "#a700ff", "#d300e7",
}

// Each session ID gets a stable colour.
func sidColor(sid string) color.RGBColor {
	hash := 7
	for _, r := range sid {
		hash = int(r) + (hash << 5) - hash
	}
	index := int(math.Abs(float64(hash % len(colors))))
	return color.Hex(colors[index])
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

func newOutput(f *os.File) *output {
	if !term.IsTerminal(int(f.Fd())) {
		color.Disable()
	}
	return &output{w: f}
}

func (o *output) printf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "%s %s\n", color.Gray.Sprint(time.Now().Format("15:04:05")), fmt.Sprintf(format, v...))
}

func (o *output) infof(format string, v ...any) {
	o.printf("%s", color.Cyan.Sprintf(format, v...))
}

func (o *output) errorf(format string, v ...any) {
	o.printf("%s %s", color.Red.Sprint("error:"), fmt.Sprintf(format, v...))
}

func (o *output) fatalf(format string, v ...any) {
	o.errorf(format, v...)
	os.Exit(1)
}

func (o *output) connected(sid string) {
	o.printf("%s connected", sidColor(sid).Sprint(sid))
}

func (o *output) disconnected(sid string, reason sio.Reason, err error) {
	if err != nil {
		o.printf("%s disconnected (%s): %v", sidColor(sid).Sprint(sid), reason, err)
		return
	}
	o.printf("%s disconnected (%s)", sidColor(sid).Sprint(sid), reason)
}

func (o *output) event(sid, namespace, name string, args []any) {
	parts := make([]string, len(args))
	for i, arg := range args {
		if b, ok := arg.(sio.Binary); ok {
			parts[i] = fmt.Sprintf("<%d bytes>", len(b))
			continue
		}
		parts[i] = fmt.Sprint(arg)
	}
	o.printf("%s %s %s %s", sidColor(sid).Sprint(sid), color.Magenta.Sprint(namespace), color.Bold.Sprint(name), strings.Join(parts, " "))
}
