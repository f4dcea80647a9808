package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sitepresence/internal/bootstrap/logging"
	domain "sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
	attendanceuc "sitepresence/internal/usecase/attendance"
)

const maxAuditLines = 6

// Source is the read and mark surface the dashboard needs; *attendance.Service implements it.
type Source interface {
	SiteSummary(ctx context.Context, siteID string, date domain.Date) (domain.Summary, error)
	SubjectCalendar(ctx context.Context, subjectID string, year int, month time.Month) ([]domain.DayClassification, error)
	MarkDaily(ctx context.Context, in attendanceuc.MarkInput) (domain.DailyMark, error)
}

type Options struct {
	SiteID          string
	MarkedBy        string
	RefreshInterval time.Duration
	Location        *time.Location
	Now             func() time.Time
}

type dashboardModel struct {
	ctx             context.Context
	source          Source
	siteID          string
	markedBy        string
	refreshInterval time.Duration

	date          domain.Date
	summary       domain.Summary
	hasSummary    bool
	selectedIndex int
	calendar      []domain.DayClassification
	calendarKey   string
	status        string
	auditLogs     []string
}

type summaryLoadedMsg struct {
	date    domain.Date
	summary domain.Summary
	err     error
}

type calendarLoadedMsg struct {
	key  string
	days []domain.DayClassification
	err  error
}

type markDoneMsg struct {
	subjectID string
	status    domain.Status
	err       error
}

type tickMsg struct{}

func NewDashboardModel(ctx context.Context, source Source, options Options) tea.Model {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	loc := options.Location
	if loc == nil {
		loc = time.Local
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	markedBy := strings.TrimSpace(options.MarkedBy)
	if markedBy == "" {
		markedBy = "console"
	}

	return &dashboardModel{
		ctx:             ctx,
		source:          source,
		siteID:          strings.TrimSpace(options.SiteID),
		markedBy:        markedBy,
		refreshInterval: interval,
		date:            domain.DateOf(now(), loc),
		status:          "loading",
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.loadSummaryCmd(), m.tickCmd())
}

func (m *dashboardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadSummaryCmd(), m.tickCmd())
	case summaryLoadedMsg:
		if msg.date != m.date {
			return m, nil
		}
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.summary = msg.summary
		m.hasSummary = true
		if m.selectedIndex >= len(m.summary.Subjects) {
			m.selectedIndex = len(m.summary.Subjects) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("refreshed, %d subjects", m.summary.Total)
		return m, m.loadCalendarCmd()
	case calendarLoadedMsg:
		if msg.key != m.currentCalendarKey() {
			return m, nil
		}
		if msg.err != nil {
			m.calendar = nil
			m.calendarKey = ""
			m.status = "calendar failed: " + msg.err.Error()
			return m, nil
		}
		m.calendar = msg.days
		m.calendarKey = msg.key
		return m, nil
	case markDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("mark %s failed: %v", msg.subjectID, msg.err)
			m.appendAuditLog(msg.subjectID, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("marked %s %s", msg.subjectID, msg.status)
			m.appendAuditLog(msg.subjectID, string(msg.status), nil)
		}
		return m, m.loadSummaryCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadSummaryCmd()
		case "left", "h":
			return m, m.moveDate(-1)
		case "right", "l":
			return m, m.moveDate(1)
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadCalendarCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.summary.Subjects)-1 {
				m.selectedIndex++
				return m, m.loadCalendarCmd()
			}
			return m, nil
		case "p":
			return m, m.markCmd(domain.StatusPresent)
		case "a":
			return m, m.markCmd(domain.StatusAbsent)
		}
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Site Presence"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"site=%s date=%s refresh=%s",
		firstNonEmpty(m.siteID, "-"),
		m.date,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Summary"))
	builder.WriteString("\n")
	if !m.hasSummary {
		builder.WriteString(dimStyle.Render("- not loaded"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("present=%d absent=%d not_marked=%d total=%d attendance=%d%%\n\n",
			m.summary.Present, m.summary.Absent, m.summary.NotMarked, m.summary.Total, m.summary.Percentage))
	}

	builder.WriteString(sectionStyle.Render("Roster"))
	builder.WriteString("\n")
	if len(m.summary.Subjects) == 0 {
		builder.WriteString(dimStyle.Render("- no subjects"))
		builder.WriteString("\n\n")
	} else {
		for index, subject := range m.summary.Subjects {
			line := fmt.Sprintf("%-12s %-24s %s", subject.SubjectID, firstNonEmpty(subject.Name, "-"), subject.Status)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Calendar"))
	builder.WriteString("\n")
	if m.calendarKey == "" || m.calendarKey != m.currentCalendarKey() {
		builder.WriteString(dimStyle.Render("- no calendar"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(RenderMonth(m.calendar, m.date))
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	if len(m.auditLogs) > 0 {
		builder.WriteString(sectionStyle.Render("Marks"))
		builder.WriteString("\n")
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ←/h →/l day  ↑/k ↓/j subject  p present  a absent  g refresh  q quit"))
	return builder.String()
}

// RenderMonth draws days as a Monday-first grid. Full days show "#", partial
// "+", anomalous "!" and empty "."; the focused day is bracketed.
func RenderMonth(days []domain.DayClassification, focus domain.Date) string {
	if len(days) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString(" Mo  Tu  We  Th  Fr  Sa  Su\n")
	first := days[0].Date.Start(time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	builder.WriteString(strings.Repeat("    ", offset))
	for i, day := range days {
		cell := fmt.Sprintf("%2d%s", day.Date.Day, classSymbol(day.Class))
		if day.Date == focus {
			cell = "[" + strings.TrimSpace(cell) + "]"
			for len(cell) < 4 {
				cell = " " + cell
			}
			builder.WriteString(cell)
		} else {
			builder.WriteString(cell + " ")
		}
		if (offset+i+1)%7 == 0 {
			builder.WriteString("\n")
		}
	}
	if (offset+len(days))%7 != 0 {
		builder.WriteString("\n")
	}
	return builder.String()
}

func classSymbol(class domain.DayClass) string {
	switch class {
	case domain.DayFull:
		return "#"
	case domain.DayPartial:
		return "+"
	case domain.DayAnomalous:
		return "!"
	default:
		return "."
	}
}

func (m *dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *dashboardModel) moveDate(days int) tea.Cmd {
	m.date = m.date.AddDays(days)
	m.status = "loading " + m.date.String()
	return m.loadSummaryCmd()
}

func (m *dashboardModel) loadSummaryCmd() tea.Cmd {
	date := m.date
	return func() tea.Msg {
		summary, err := m.source.SiteSummary(m.ctx, m.siteID, date)
		return summaryLoadedMsg{date: date, summary: summary, err: err}
	}
}

func (m *dashboardModel) selectedSubject() (domain.SubjectStatus, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.summary.Subjects) {
		return domain.SubjectStatus{}, false
	}
	return m.summary.Subjects[m.selectedIndex], true
}

func (m *dashboardModel) currentCalendarKey() string {
	subject, ok := m.selectedSubject()
	if !ok {
		return ""
	}
	return calendarKey(subject.SubjectID, m.date)
}

func calendarKey(subjectID string, date domain.Date) string {
	return fmt.Sprintf("%s@%04d-%02d", subjectID, date.Year, int(date.Month))
}

func (m *dashboardModel) loadCalendarCmd() tea.Cmd {
	subject, ok := m.selectedSubject()
	if !ok {
		return nil
	}
	date := m.date
	key := calendarKey(subject.SubjectID, date)
	return func() tea.Msg {
		days, err := m.source.SubjectCalendar(m.ctx, subject.SubjectID, date.Year, date.Month)
		return calendarLoadedMsg{key: key, days: days, err: err}
	}
}

func (m *dashboardModel) markCmd(status domain.Status) tea.Cmd {
	subject, ok := m.selectedSubject()
	if !ok {
		m.status = "no subject selected"
		return nil
	}
	input := attendanceuc.MarkInput{
		SubjectID: subject.SubjectID,
		Date:      m.date,
		Status:    status,
		MarkedBy:  m.markedBy,
	}
	return func() tea.Msg {
		_, err := m.source.MarkDaily(m.ctx, input)
		if err != nil {
			logging.Warn(logging.WithComponent(m.ctx, "usecase.dashboard"), "mark from console failed",
				slog.String("subject_id", input.SubjectID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
		return markDoneMsg{subjectID: input.SubjectID, status: status, err: err}
	}
}

func (m *dashboardModel) appendAuditLog(subjectID string, result string, opErr error) {
	line := fmt.Sprintf("%s %s %s -> %s", time.Now().Format("15:04:05"), m.date, subjectID, result)
	if opErr != nil {
		line += " (" + opErr.Error() + ")"
	}
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
