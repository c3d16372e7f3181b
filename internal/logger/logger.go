// Package logger implements the structured diagnostics used throughout the
// graph core: a small tagged Msg type with a lazily-rendered "(plugin) file (line:col)
// message" string, three severities, and a Log that can either collect
// messages or stream them to a caller-supplied handler.
package logger

import (
	"fmt"
	"os"
)

// TerminalInfo describes what stderr is attached to; filled in by the
// platform-specific GetTerminalInfo.
type TerminalInfo struct {
	IsTTY           bool
	UseColorEscapes bool
	Width           int
	Height          int
}

func hasNoColorEnvironmentVariable() bool {
	// https://no-color.org/
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

type MsgKind uint8

const (
	Error MsgKind = iota
	Warning
	Debug
)

func (kind MsgKind) String() string {
	switch kind {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Debug:
		return "debug"
	default:
		panic("internal error")
	}
}

// Loc is a 1-based line / 0-based column location within a source file.
// Both are zero when the location is unknown.
type Loc struct {
	Line   int
	Column int
}

type MsgLocation struct {
	File     string
	Loc      Loc
	LineText string
}

type MsgData struct {
	Text     string
	Location *MsgLocation
}

// Msg is never rendered eagerly: String() is only called by a caller that
// actually wants to display it (e.g. a test or the default onwarn handler),
// which keeps the hot path free of string formatting.
type Msg struct {
	Kind       MsgKind
	PluginName string
	Data       MsgData
	Code       string // set on errors and warnings, e.g. "UNRESOLVED_IMPORT"; empty on debug messages
}

func (msg Msg) String() string {
	var loc string
	if l := msg.Data.Location; l != nil {
		loc = fmt.Sprintf("%s (%d:%d) ", l.File, l.Loc.Line, l.Loc.Column)
	}
	if msg.PluginName != "" {
		return fmt.Sprintf("(%s) %s%s", msg.PluginName, loc, msg.Data.Text)
	}
	return fmt.Sprintf("%s%s", loc, msg.Data.Text)
}

// Log collects diagnostics for a single build. Warnings are deduplicated by
// their rendered string when no custom onWarn handler intercepts them first.
type Log struct {
	onWarn  func(Msg)
	sink    func(Msg)
	seen    map[string]bool
	msgs    []Msg
	nErrors int
}

// NewLog creates a Log. When onWarn is nil, warnings are deduplicated and
// appended to Msgs() in arrival order, which is the default handler.
func NewLog(onWarn func(Msg)) *Log {
	return &Log{onWarn: onWarn, seen: make(map[string]bool)}
}

// NewStderrLog creates a Log that also streams every error and warning to
// stderr as it arrives, colorized when stderr is a terminal that supports
// color escapes.
func NewStderrLog() *Log {
	info := GetTerminalInfo(os.Stderr)
	useColor := info.UseColorEscapes && SupportsColorEscapes
	l := NewLog(nil)
	l.sink = func(msg Msg) {
		text := msg.String() + "\n"
		if useColor {
			switch msg.Kind {
			case Error:
				text = "\033[31merror:\033[0m " + text
			case Warning:
				text = "\033[33mwarning:\033[0m " + text
			}
		} else {
			text = msg.Kind.String() + ": " + text
		}
		writeStringWithColor(os.Stderr, text)
	}
	return l
}

func (l *Log) AddMsg(msg Msg) {
	if msg.Kind == Error {
		l.nErrors++
		l.msgs = append(l.msgs, msg)
		if l.sink != nil {
			l.sink(msg)
		}
		return
	}
	if msg.Kind == Warning {
		if l.onWarn != nil {
			l.onWarn(msg)
			return
		}
		key := msg.String()
		if l.seen[key] {
			return
		}
		l.seen[key] = true
		if l.sink != nil {
			l.sink(msg)
		}
	}
	l.msgs = append(l.msgs, msg)
}

func (l *Log) AddError(code string, loc *MsgLocation, text string) {
	l.AddMsg(Msg{Kind: Error, Code: code, Data: MsgData{Text: text, Location: loc}})
}

func (l *Log) AddWarning(code string, pluginName string, loc *MsgLocation, text string) {
	l.AddMsg(Msg{Kind: Warning, Code: code, PluginName: pluginName, Data: MsgData{Text: text, Location: loc}})
}

func (l *Log) AddDebug(text string) {
	l.AddMsg(Msg{Kind: Debug, Data: MsgData{Text: text}})
}

func (l *Log) HasErrors() bool {
	return l.nErrors > 0
}

// Msgs returns every message recorded so far, in arrival order.
func (l *Log) Msgs() []Msg {
	return l.msgs
}

// Warnings returns only the Warning-kind messages, in arrival order.
func (l *Log) Warnings() []Msg {
	var out []Msg
	for _, m := range l.msgs {
		if m.Kind == Warning {
			out = append(out, m)
		}
	}
	return out
}
