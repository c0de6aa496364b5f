// Package report renders run progress for operators.
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/MrSnakeDoc/catalogsync/internal/logger"
)

// Reporter receives progress milestones of a sync run.
type Reporter interface {
	Start(msg string)
	Succeed(msg string)
	Fail(msg string)
	Info(msg string)
}

// New returns a Console on stdout when it is a terminal, otherwise a
// reporter that forwards to log.
func New(log logger.Logger) Reporter {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return NewConsole(os.Stdout)
	}
	return NewLog(log)
}

// ─────────────────────────────
// Console
// ─────────────────────────────

const (
	iconStart   = "◎"
	iconSucceed = "✓"
	iconFail    = "✗"
	iconInfo    = "·"
)

// Console prints styled one-line milestones.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	start   lipgloss.Style
	succeed lipgloss.Style
	fail    lipgloss.Style
	info    lipgloss.Style
}

// NewConsole builds a console bound to w. Colors are only emitted when w
// supports them.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:       w,
		start:   r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		succeed: r.NewStyle().Foreground(lipgloss.Color("#00E676")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("#FF5252")).Bold(true),
		info:    r.NewStyle().Foreground(lipgloss.Color("#8C8C8C")),
	}
}

func (c *Console) Start(msg string)   { c.line(c.start, iconStart, msg) }
func (c *Console) Succeed(msg string) { c.line(c.succeed, iconSucceed, msg) }
func (c *Console) Fail(msg string)    { c.line(c.fail, iconFail, msg) }
func (c *Console) Info(msg string)    { c.line(c.info, iconInfo, msg) }

func (c *Console) line(style lipgloss.Style, icon, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, style.Render(icon+" "+msg))
}

// ─────────────────────────────
// Log
// ─────────────────────────────

// Log forwards milestones to a structured logger.
type Log struct {
	log logger.Logger
}

func NewLog(log logger.Logger) *Log {
	return &Log{log: log.With(logger.String("component", "report"))}
}

func (l *Log) Start(msg string)   { l.log.Info(msg, logger.String("stage", "start")) }
func (l *Log) Succeed(msg string) { l.log.Info(msg, logger.String("stage", "succeed")) }
func (l *Log) Fail(msg string)    { l.log.Error(msg, logger.String("stage", "fail")) }
func (l *Log) Info(msg string)    { l.log.Info(msg) }

// Nop discards every milestone.
type Nop struct{}

func (Nop) Start(string)   {}
func (Nop) Succeed(string) {}
func (Nop) Fail(string)    {}
func (Nop) Info(string)    {}
