package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/russross/blackfriday/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const (
	recentMentionLimit = 5
	snippetLength      = 200
)

var sentimentOrder = []models.Sentiment{models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral}

var summaryTitles = map[models.SummaryMode]string{
	models.SummaryPositive:    "What users like",
	models.SummaryNegative:    "Complaints and risks",
	models.SummarySuggestions: "Suggestions",
}

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	dialer *gomail.Dialer
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

// SendReport sends a report via configured notification channels
func (s *Service) SendReport(report *models.Report) error {
	return s.deliver("report",
		func() error { return s.postToTeams(s.buildTeamsReport(report)) },
		func() error { return s.sendReportEmail(report) },
	)
}

// SendAlert sends an urgent alert via configured notification channels
func (s *Service) SendAlert(alert *models.Alert) error {
	return s.deliver("alert",
		func() error { return s.postToTeams(s.buildTeamsAlert(alert)) },
		func() error { return s.sendAlertEmail(alert) },
	)
}

func (s *Service) deliver(kind string, teams, email func() error) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := teams(); err != nil {
			logrus.Errorf("Failed to send Teams %s: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Successfully sent %s to Teams", kind)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := email(); err != nil {
			logrus.Errorf("Failed to send %s email: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Successfully sent %s via email", kind)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) postToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsReport(report *models.Report) *TeamsMessage {
	d := report.Dashboard
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("%s Mentions Report - %s", report.Brand, titleCase(report.Period)),
		Text:    fmt.Sprintf("%d mentions tracked, %d analyzed, %d pending", d.TotalMentions, d.AnalyzedMentions, d.PendingMentions),
	}

	facts := []TeamsFact{
		{Name: "Total Mentions", Value: fmt.Sprintf("%d", d.TotalMentions)},
		{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	for _, sentiment := range sentimentOrder {
		facts = append(facts, TeamsFact{
			Name:  fmt.Sprintf("%s Mentions", sentiment),
			Value: fmt.Sprintf("%d", d.SentimentBreakdown[sentiment]),
		})
	}
	facts = append(facts, TeamsFact{Name: "High Urgency", Value: fmt.Sprintf("%d", d.UrgencyBreakdown[models.UrgencyHigh])})
	if topics := formatTopics(d.TopTopics, 5); topics != "" {
		facts = append(facts, TeamsFact{Name: "Top Topics", Value: topics})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	for _, mode := range models.SummaryModes {
		if text, ok := report.Summaries[mode]; ok {
			message.Sections = append(message.Sections, TeamsSection{
				ActivityTitle: summaryTitles[mode],
				ActivityText:  text,
				Markdown:      true,
			})
		}
	}

	if len(report.Mentions) > 0 {
		var lines []string
		for _, mention := range limitMentions(report.Mentions, recentMentionLimit) {
			lines = append(lines, fmt.Sprintf("**[%s](%s)** - %s (%s)",
				truncate(mention.Text, 80), mention.URL, mention.Source, mention.Timestamp.Format("Jan 2")))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Recent Mentions",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildTeamsAlert(alert *models.Alert) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      alert.Title,
		Text:       alert.Message,
	}

	if m := alert.Mention; m != nil {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle:    fmt.Sprintf("[%s](%s)", m.Source, m.URL),
			ActivitySubtitle: m.Timestamp.Format("2006-01-02 15:04 UTC"),
			ActivityText:     truncate(m.Text, 500),
			Facts: []TeamsFact{
				{Name: "Sentiment", Value: string(m.Sentiment)},
				{Name: "Topic", Value: m.Topic},
				{Name: "Urgency", Value: string(m.Urgency)},
			},
			Markdown: true,
		})
	}

	return message
}

func (s *Service) sendReportEmail(report *models.Report) error {
	subject := fmt.Sprintf("%s Mentions Report - %s (%d mentions)",
		report.Brand, titleCase(report.Period), report.Dashboard.TotalMentions)

	htmlBody, err := BuildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	return s.sendEmail(subject, BuildEmailText(report), htmlBody)
}

func (s *Service) sendAlertEmail(alert *models.Alert) error {
	var text strings.Builder
	text.WriteString(alert.Message + "\n\n")
	if m := alert.Mention; m != nil {
		fmt.Fprintf(&text, "Source: %s | Date: %s\n", m.Source, m.Timestamp.Format("Jan 2, 2006"))
		fmt.Fprintf(&text, "Sentiment: %s | Topic: %s | Urgency: %s\n", m.Sentiment, m.Topic, m.Urgency)
		fmt.Fprintf(&text, "URL: %s\n\n%s\n", m.URL, truncate(m.Text, 1000))
	}

	return s.sendEmail(alert.Title, text.String(), "")
}

func (s *Service) sendEmail(subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

type summaryView struct {
	Title string
	HTML  template.HTML
}

type reportView struct {
	*models.Report
	PeriodTitle string
	Sentiments  []TeamsFact
	TopTopics   string
	Sections    []summaryView
}

func newReportView(report *models.Report) reportView {
	view := reportView{
		Report:      report,
		PeriodTitle: titleCase(report.Period),
		TopTopics:   formatTopics(report.Dashboard.TopTopics, 5),
	}

	for _, sentiment := range sentimentOrder {
		view.Sentiments = append(view.Sentiments, TeamsFact{
			Name:  string(sentiment),
			Value: fmt.Sprintf("%d", report.Dashboard.SentimentBreakdown[sentiment]),
		})
	}

	for _, mode := range models.SummaryModes {
		text, ok := report.Summaries[mode]
		if !ok {
			continue
		}
		view.Sections = append(view.Sections, summaryView{
			Title: summaryTitles[mode],
			HTML:  renderSummary(text),
		})
	}

	return view
}

// renderSummary turns model-written markdown into HTML. Summaries echo
// untrusted post text, so raw HTML is dropped and only safe link schemes
// become anchors.
func renderSummary(markdown string) template.HTML {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink | blackfriday.NofollowLinks,
	})
	rendered := blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
		blackfriday.WithRenderer(renderer))
	return template.HTML(rendered)
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Brand}} Mentions Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #0078d4; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .mention { border-left: 4px solid #0078d4; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .mention-meta { color: #666; font-size: 0.9em; }
        .Positive { border-left-color: #107c10; }
        .Negative { border-left-color: #d13438; }
        .Neutral { border-left-color: #605e5c; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Brand}} Mentions Report</h1>
        <p>{{.PeriodTitle}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Mentions:</strong> {{.Dashboard.TotalMentions}} ({{.Dashboard.PendingMentions}} pending analysis)</p>
        {{range .Sentiments}}
            <p><strong>{{.Name}} Mentions:</strong> {{.Value}}</p>
        {{end}}
        {{if .TopTopics}}<p><strong>Top Topics:</strong> {{.TopTopics}}</p>{{end}}
    </div>

    {{range .Sections}}
    <h2>{{.Title}}</h2>
    <div>{{.HTML}}</div>
    {{end}}

    {{if .Mentions}}
    <h2>Recent Mentions</h2>
    {{range .Mentions}}
        <div class="mention {{.Sentiment}}">
            <div><a href="{{.URL}}" target="_blank">{{truncate .Text 200}}</a></div>
            <div class="mention-meta">
                {{.Source}} | {{.Timestamp.Format "Jan 2, 2006"}}{{if .Topic}} | {{.Topic}}{{end}}{{if .Urgency}} | {{.Urgency}} urgency{{end}}
            </div>
        </div>
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the Brand Mentions Bot.</small></p>
</body>
</html>
`

// BuildEmailHTML renders the HTML body of a report email
func BuildEmailHTML(report *models.Report) (string, error) {
	t, err := template.New("email").Funcs(template.FuncMap{
		"truncate": truncate,
	}).Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, newReportView(report)); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// BuildEmailText renders the plain-text body of a report email
func BuildEmailText(report *models.Report) string {
	var text strings.Builder
	d := report.Dashboard

	text.WriteString(fmt.Sprintf("%s Mentions Report - %s\n", report.Brand, titleCase(report.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Mentions: %d (%d pending analysis)\n", d.TotalMentions, d.PendingMentions))
	for _, sentiment := range sentimentOrder {
		text.WriteString(fmt.Sprintf("%s Mentions: %d\n", sentiment, d.SentimentBreakdown[sentiment]))
	}
	if topics := formatTopics(d.TopTopics, 5); topics != "" {
		text.WriteString(fmt.Sprintf("Top Topics: %s\n", topics))
	}

	for _, mode := range models.SummaryModes {
		if summary, ok := report.Summaries[mode]; ok {
			title := strings.ToUpper(summaryTitles[mode])
			text.WriteString(fmt.Sprintf("\n%s\n%s\n%s\n", title, strings.Repeat("=", len(title)), summary))
		}
	}

	if len(report.Mentions) > 0 {
		text.WriteString("\nRECENT MENTIONS\n")
		text.WriteString("===============\n")

		for i, mention := range report.Mentions {
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, truncate(mention.Text, snippetLength)))
			text.WriteString(fmt.Sprintf("   Source: %s | Date: %s", mention.Source, mention.Timestamp.Format("Jan 2, 2006")))
			if mention.Analyzed() {
				text.WriteString(fmt.Sprintf(" | %s | %s | %s urgency", mention.Sentiment, mention.Topic, mention.Urgency))
			}
			text.WriteString(fmt.Sprintf("\n   URL: %s\n", mention.URL))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the Brand Mentions Bot.\n")

	return text.String()
}

func formatTopics(topics []models.TopicCount, limit int) string {
	var parts []string
	for i, t := range topics {
		if i >= limit {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", t.Topic, t.Count))
	}
	return strings.Join(parts, ", ")
}

func limitMentions(mentions []models.Mention, limit int) []models.Mention {
	if len(mentions) > limit {
		return mentions[:limit]
	}
	return mentions
}

func truncate(s string, length int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= length {
		return string(runes)
	}
	return string(runes[:length]) + "..."
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
