package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmitrijs2005/ticketdesk/internal/client/alert"
	"github.com/dmitrijs2005/ticketdesk/internal/client/metrics"
)

// defaultToastWidth is the terminal width toasts are aligned against when the
// real width is unknown.
const defaultToastWidth = 80

var toastColors = map[alert.Level]lipgloss.Color{
	alert.LevelInfo:    lipgloss.Color("39"),
	alert.LevelSuccess: lipgloss.Color("42"),
	alert.LevelWarning: lipgloss.Color("214"),
	alert.LevelError:   lipgloss.Color("196"),
}

// Toaster is the terminal Notifier. Each alert becomes one styled line on w,
// aligned according to its Position. A terminal has no overlay, so the line
// scrolls away with regular output instead of disappearing after Duration.
type Toaster struct {
	mu      sync.Mutex
	w       io.Writer
	r       *lipgloss.Renderer
	width   int
	metrics *metrics.Metrics
}

// NewToaster returns a Toaster writing to w. m may be nil.
func NewToaster(w io.Writer, width int, m *metrics.Metrics) *Toaster {
	if width <= 0 {
		width = defaultToastWidth
	}
	return &Toaster{w: w, r: lipgloss.NewRenderer(w), width: width, metrics: m}
}

func (t *Toaster) Notify(a alert.Alert) {
	if t.metrics != nil {
		t.metrics.AlertsTotal.WithLabelValues(string(a.Level)).Inc()
	}

	line := renderToast(t.r, a, t.width)

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

func renderToast(r *lipgloss.Renderer, a alert.Alert, width int) string {
	color, ok := toastColors[a.Level]
	if !ok {
		color = toastColors[alert.LevelInfo]
	}

	badge := r.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(color).
		Bold(true).
		Padding(0, 1).
		Render(strings.ToUpper(string(a.Level)))
	body := r.NewStyle().
		Foreground(color).
		Render(a.Message)

	toast := badge + " " + body

	pos := lipgloss.Right
	if a.Position == alert.TopCenter {
		pos = lipgloss.Center
	}
	if lipgloss.Width(toast) >= width {
		return toast
	}
	return r.PlaceHorizontal(width, pos, toast)
}
