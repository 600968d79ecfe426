package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cleanrag/internal/completion"
	"cleanrag/internal/domain"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	ProcessChat(ctx context.Context, q domain.Query) (*domain.ChatReply, error)
}

type exchange struct {
	question string
	reply    *domain.ChatReply
	err      error
}

type replyMsg struct {
	question string
	reply    *domain.ChatReply
	err      error
}

// Model is the Bubble Tea model for the chat client. Each question is sent
// on its own; earlier exchanges are only kept for display.
type Model struct {
	service  ChatPort
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []exchange
	zipcode  string
	status   string
	waiting  bool
	ready    bool
}

// New creates a chat model. timeout bounds each question end to end.
func New(service ChatPort, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "세탁 고민을 입력하세요 (/zip 06236 으로 지역 설정)"
	ti.Focus()
	ti.CharLimit = domain.MaxMessageLength
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return Model{
		service:  service,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		status:   "Enter: 질문  /zip <우편번호>: 지역 설정  Ctrl+C: 종료",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case replyMsg:
		m.waiting = false
		m.history = append(m.history, exchange(msg))
		if msg.err != nil {
			m.status = "오류: " + userMessage(msg.err)
		} else {
			m.status = "답변 완료"
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()
	if rest, ok := strings.CutPrefix(text, "/zip"); ok {
		m.zipcode = strings.TrimSpace(rest)
		if m.zipcode == "" {
			m.status = "지역 설정 해제"
		} else {
			m.status = "지역: " + m.zipcode
		}
		return m, nil
	}
	m.waiting = true
	m.status = "답변 작성 중..."
	return m, tea.Batch(m.spinner.Tick, m.ask(domain.Query{Message: text, Zipcode: m.zipcode}))
}

func (m Model) ask(q domain.Query) tea.Cmd {
	service, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		reply, err := service.ProcessChat(ctx, q)
		return replyMsg{question: q.Message, reply: reply, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "세탁 장인 상담"
	if m.zipcode != "" {
		title += "  [" + m.zipcode + "]"
	}
	header := lipgloss.NewStyle().Bold(true).Render(title)
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		transcriptBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return mutedStyle.Render("얼룩, 소재, 세탁 방법에 대해 물어보세요.")
	}
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Q. " + ex.question))
		b.WriteString("\n")
		if ex.err != nil {
			b.WriteString(errorStyle.Render(userMessage(ex.err)))
			continue
		}
		b.WriteString(renderReply(ex.reply))
	}
	return b.String()
}

func renderReply(r *domain.ChatReply) string {
	var b strings.Builder
	b.WriteString(r.Answer)
	var facts []string
	if r.SuccessRate != nil {
		facts = append(facts, "성공률 "+*r.SuccessRate)
	}
	if r.RiskLevel != nil {
		facts = append(facts, "위험도 "+riskStyle(*r.RiskLevel).Render(string(*r.RiskLevel)))
	}
	if len(facts) > 0 {
		b.WriteString("\n" + strings.Join(facts, " | "))
	}
	if len(r.RecommendedShops) > 0 {
		b.WriteString("\n" + shopHeaderStyle.Render("추천 파트너 세탁소"))
		for _, s := range r.RecommendedShops {
			line := "  • " + s.ShopName
			if s.Zipcode != "" {
				line += " (" + s.Zipcode + ")"
			}
			if len(s.Specialty) > 0 {
				line += " - " + strings.Join(s.Specialty, ", ")
			}
			if s.Rating != nil {
				line += fmt.Sprintf(" ★%.1f", *s.Rating)
			}
			b.WriteString("\n" + line)
		}
	}
	if r.Disclaimer != "" {
		b.WriteString("\n" + mutedStyle.Render(r.Disclaimer))
	}
	return b.String()
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "응답 시간이 초과되었습니다."
	case errors.Is(err, completion.ErrConfiguration):
		return "API 키가 설정되지 않았습니다."
	case errors.Is(err, completion.ErrAuth):
		return "AI 서비스 인증에 실패했습니다."
	case errors.Is(err, completion.ErrRateLimited):
		return "요청이 많습니다. 잠시 후 다시 시도해주세요."
	}
	return "답변을 받지 못했습니다. 잠시 후 다시 시도해주세요."
}

func riskStyle(level domain.RiskLevel) lipgloss.Style {
	switch level {
	case domain.RiskHigh:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	case domain.RiskMedium:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	shopHeaderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
