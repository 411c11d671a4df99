package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const historySize = 60

var (
	queueURL     string
	region       string
	endpoint     string
	pollInterval time.Duration
)

func loadEnv() error {
	queueURL = getEnv("QUEUE_URL", getEnv("SQS_QUEUE_URL", ""))
	if queueURL == "" {
		return fmt.Errorf("QUEUE_URL environment variable is required")
	}
	region = getEnv("AWS_REGION", "us-east-1")
	endpoint = getEnv("SQS_ENDPOINT", "")
	pollInterval = time.Duration(getEnvInt("QUEUEWATCH_INTERVAL_SECONDS", 2)) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

type attributesClient interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// one reading of the queue's approximate counters
type sample struct {
	at        time.Time
	available int
	inFlight  int
	delayed   int
}

// everything still to be consumed, including messages not yet released
func (s sample) pending() int {
	return s.available + s.inFlight + s.delayed
}

func fetchSample(ctx context.Context, client attributesClient, url string) (sample, error) {
	out, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(url),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		return sample{}, err
	}

	attr := func(name types.QueueAttributeName) int {
		n, _ := strconv.Atoi(out.Attributes[string(name)])
		return n
	}
	return sample{
		at:        time.Now(),
		available: attr(types.QueueAttributeNameApproximateNumberOfMessages),
		inFlight:  attr(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
		delayed:   attr(types.QueueAttributeNameApproximateNumberOfMessagesDelayed),
	}, nil
}

type sampleMsg sample
type errMsg struct{ err error }
type pollMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("111"))

	delayedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2).
			MarginBottom(1)
)

type model struct {
	client   attributesClient
	queueURL string
	interval time.Duration

	spinner  spinner.Model
	progress progress.Model
	history  []sample
	peak     int
	lastErr  error
	width    int
}

func newModel(client attributesClient, url string, interval time.Duration) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		client:   client,
		queueURL: url,
		interval: interval,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		history:  make([]sample, 0, historySize),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd())
}

func (m model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := fetchSample(ctx, m.client, m.queueURL)
		if err != nil {
			return errMsg{err: err}
		}
		return sampleMsg(s)
	}
}

func (m model) waitCmd() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(msg.Width-4, 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			// start measuring a new run from the current backlog
			m.peak = 0
			m.history = m.history[:0]
			return m, nil
		}

	case sampleMsg:
		m.lastErr = nil
		m.record(sample(msg))
		return m, m.waitCmd()

	case errMsg:
		m.lastErr = msg.err
		return m, m.waitCmd()

	case pollMsg:
		return m, m.fetchCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *model) record(s sample) {
	m.history = append(m.history, s)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	m.peak = max(m.peak, s.pending())
}

// fraction of the peak backlog that has been consumed
func (m model) drained() float64 {
	if m.peak == 0 || len(m.history) == 0 {
		return 0
	}
	return 1 - float64(m.history[len(m.history)-1].pending())/float64(m.peak)
}

// messages per second leaving the queue between the last two samples
func (m model) drainRate() float64 {
	if len(m.history) < 2 {
		return 0
	}
	prev, last := m.history[len(m.history)-2], m.history[len(m.history)-1]
	elapsed := last.at.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return max(float64(prev.pending()-last.pending())/elapsed, 0)
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("DynamoDB Slammer - Queue Watch") + "\n")

	drained := m.drained()
	status := fmt.Sprintf("Drained: %.1f%% of peak %d", drained*100, m.peak)
	if len(m.history) > 0 && m.history[len(m.history)-1].pending() == 0 && m.peak > 0 {
		status = "✓ " + status
	} else {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(status + "\n")
	b.WriteString(m.progress.ViewAs(drained) + "\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderCountsPanel(), m.renderTrendPanel()) + "\n")

	if m.lastErr != nil {
		b.WriteString(boxStyle.Width(84).Render(errorStyle.Render("⚠ "+m.lastErr.Error())) + "\n")
	}

	b.WriteString(labelStyle.Render("Press 'r' to reset the peak, 'q' to quit"))
	return b.String()
}

func (m model) renderCountsPanel() string {
	var last sample
	if len(m.history) > 0 {
		last = m.history[len(m.history)-1]
	}

	displayQueueURL := m.queueURL
	if len(displayQueueURL) > 34 {
		displayQueueURL = "..." + displayQueueURL[len(displayQueueURL)-31:]
	}

	content := fmt.Sprintf(
		"%s\n  %s\n\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s\n\n"+
			"%s %s msg/s",
		labelStyle.Render("Queue:"),
		valueStyle.Render(displayQueueURL),
		labelStyle.Render("Available:"),
		valueStyle.Render(strconv.Itoa(last.available)),
		labelStyle.Render("In flight:"),
		successStyle.Render(strconv.Itoa(last.inFlight)),
		labelStyle.Render("Delayed:  "),
		delayedStyle.Render(strconv.Itoa(last.delayed)),
		labelStyle.Render("Drain rate:"),
		valueStyle.Render(fmt.Sprintf("%.2f", m.drainRate())),
	)
	return boxStyle.Width(40).Render(content)
}

func (m model) renderTrendPanel() string {
	pending := make([]int, len(m.history))
	delayed := make([]int, len(m.history))
	for i, s := range m.history {
		pending[i] = s.pending()
		delayed[i] = s.delayed
	}

	content := fmt.Sprintf(
		"%s\n%s\n\n%s\n%s\n\n%s %s",
		labelStyle.Render("Pending:"),
		valueStyle.Render(sparkline(pending, m.peak)),
		labelStyle.Render("Delayed:"),
		delayedStyle.Render(sparkline(delayed, m.peak)),
		labelStyle.Render("Every:"),
		valueStyle.Render(m.interval.String()),
	)
	return boxStyle.Width(40).Render(content)
}

// sparkline scales values against ceiling, one bar per value
func sparkline(values []int, ceiling int) string {
	if len(values) == 0 {
		return "  No data yet..."
	}

	bars := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	recent := values[max(len(values)-30, 0):]

	var sb strings.Builder
	sb.WriteString("  ")
	for _, v := range recent {
		idx := 0
		if ceiling > 0 {
			idx = v * (len(bars) - 1) / ceiling
		}
		idx = min(max(idx, 0), len(bars)-1)
		sb.WriteRune(bars[idx])
	}
	return sb.String()
}

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to load SDK config: %v\n", err)
		os.Exit(1)
	}
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	p := tea.NewProgram(newModel(client, queueURL, pollInterval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
