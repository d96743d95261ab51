package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
)

// BodyFromRaw turns a raw RFC822 message into prompt-ready plain text:
// the text part when present, otherwise the HTML part stripped of
// markup, plus the text of any PDF attachment (vendors often send the
// actual quote as an attached PDF). Returns the decoded subject too.
func BodyFromRaw(raw []byte) (subject, body string, err error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}

	text := strings.TrimSpace(env.Text)
	if text == "" && env.HTML != "" {
		text = htmlToText(env.HTML)
	}

	sections := []string{}
	if text != "" {
		sections = append(sections, text)
	}
	for _, att := range env.Attachments {
		if !strings.HasSuffix(strings.ToLower(att.FileName), ".pdf") {
			continue
		}
		attText, pdfErr := pdfToText(att.Content)
		if pdfErr != nil || attText == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("Attachment %s:\n%s", att.FileName, attText))
	}

	return env.GetHeader("Subject"), strings.Join(sections, "\n\n"), nil
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,head").Remove()
	doc.Find("p,div,br,tr,li,h1,h2,h3,h4,h5,h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	out := strings.Join(lines, "\n")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func pdfToText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}
